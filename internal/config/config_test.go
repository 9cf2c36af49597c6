package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "*", cfg.Network.Listen)
	assert.Equal(t, "127.0.0.1", cfg.Network.Target)
	assert.Equal(t, 8888, cfg.Network.Port)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Teardown.Std())
	assert.Equal(t, time.Second, cfg.Readiness.Settle.Std())
	assert.Equal(t, "Connected!", cfg.Marker)
	assert.Equal(t, []ByteSize{1000, 100000, 200000, 1000000, 100000000}, cfg.Sizes)
	assert.Equal(t, Kinds, cfg.PlanKinds())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "catwalk.yaml", `
tool:
  path: /opt/quiccat
  env: ["QUIC_LOG=1"]
  listener_args: ["-announce:1"]
network:
  port: 9999
  password: hunter2
timeouts:
  teardown: 5s
  transfer: 0s
readiness:
  marker: Listening
  timeout: 2s
sizes: [0, 1kB, "100 kB", 1MB, 12345]
scenarios: [interactive, file_transfer]
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/quiccat", cfg.Tool.Path)
	assert.Equal(t, []string{"QUIC_LOG=1"}, cfg.Tool.Env)
	assert.Equal(t, []string{"-announce:1"}, cfg.Tool.ListenerArgs)
	assert.Equal(t, 9999, cfg.Network.Port)
	assert.Equal(t, "hunter2", cfg.Network.Password)
	// Unset keys keep their defaults.
	assert.Equal(t, "*", cfg.Network.Listen)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Handshake.Std())
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Teardown.Std())
	assert.Equal(t, time.Duration(0), cfg.Timeouts.Transfer.Std())
	assert.Equal(t, "Listening", cfg.Readiness.Marker)
	assert.Equal(t, 2*time.Second, cfg.Readiness.Timeout.Std())
	assert.Equal(t, []ByteSize{0, 1000, 100000, 1000000, 12345}, cfg.Sizes)
	assert.Equal(t, []string{KindInteractive, KindFileTransfer}, cfg.PlanKinds())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "catwalk.toml", `
sizes = ["1kB", 2000]
scenarios = ["half_close"]

[tool]
path = "./refcat"

[network]
target = "localhost"
port = 4433

[timeouts]
teardown = "1500ms"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./refcat", cfg.Tool.Path)
	assert.Equal(t, "localhost", cfg.Network.Target)
	assert.Equal(t, 4433, cfg.Network.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Teardown.Std())
	assert.Equal(t, []ByteSize{1000, 2000}, cfg.Sizes)
	assert.Equal(t, []string{KindHalfClose}, cfg.PlanKinds())
}

func TestLoad_SizesDefaultWhenOmitted(t *testing.T) {
	path := writeConfig(t, "c.yml", "tool:\n  path: ./x\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Sizes, cfg.Sizes)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown yaml key", "c.yaml", "tool:\n  pth: ./x\n", "field pth not found"},
		{"unknown toml key", "c.toml", "[tool]\npth = \"./x\"\n", "config parse failed"},
		{"bad duration", "c.yaml", "timeouts:\n  teardown: soon\n", "invalid duration"},
		{"bad size", "c.yaml", "sizes: [lots]\n", "invalid size"},
		{"negative size text", "c.yaml", "sizes: [-5]\n", "invalid size"},
		{"port out of range", "c.yaml", "network:\n  port: 70000\n", "out of range"},
		{"zero teardown", "c.yaml", "timeouts:\n  teardown: 0s\n", "teardown must be positive"},
		{"unknown scenario", "c.yaml", "scenarios: [chaos]\n", "unknown scenario kind"},
		{"empty sizes with transfers", "c.yaml", "sizes: []\n", "sizes must be non-empty"},
		{"empty marker", "c.yaml", "marker: \"\"\n", "marker is required"},
		{"bad env", "c.yaml", "tool:\n  env: [NOEQUALS]\n", "expected KEY=value"},
		{"unsupported extension", "c.json", "{}", "unsupported extension"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.file, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config load failed")
}

func TestValidate_EmptySizesAllowedWithoutTransfers(t *testing.T) {
	cfg := Default()
	cfg.Sizes = nil
	cfg.Scenarios = []string{KindHalfClose, KindInteractive}
	assert.NoError(t, cfg.Validate())
}

func TestByteSize_String(t *testing.T) {
	assert.Equal(t, "1kB", ByteSize(1000).String())
	assert.Equal(t, "100MB", ByteSize(100_000_000).String())
	assert.Equal(t, "0B", ByteSize(0).String())
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := Duration(3 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "3s", string(text))
}
