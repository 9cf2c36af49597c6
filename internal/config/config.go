// Package config loads the harness configuration.
//
// A configuration file is optional. When present it may be YAML (.yaml,
// .yml) or TOML (.toml); both are decoded strictly so that a misspelled key
// is an error rather than a silently ignored setting. Values not set in the
// file keep the defaults from Default.
//
// Example (YAML):
//
//	tool:
//	  path: ./quiccat
//	network:
//	  listen: "*"
//	  target: 127.0.0.1
//	  port: 8888
//	timeouts:
//	  handshake: 10s
//	  transfer: 10m
//	  teardown: 3s
//	readiness:
//	  settle: 1s
//	sizes: [1kB, 100kB, 200kB, 1MB, 100MB]
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Scenario kinds, in the order the default plan runs them.
const (
	KindHalfClose      = "half_close"
	KindInteractive    = "interactive"
	KindFileTransfer   = "file_transfer"
	KindStreamTransfer = "stream_transfer"
)

// Kinds lists every known scenario kind in default plan order.
var Kinds = []string{KindHalfClose, KindInteractive, KindFileTransfer, KindStreamTransfer}

// DefaultMarker is the handshake text both peers print once connected.
const DefaultMarker = "Connected!"

// Config is the complete harness configuration.
type Config struct {
	Tool      ToolConfig      `yaml:"tool" toml:"tool"`
	Network   NetworkConfig   `yaml:"network" toml:"network"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" toml:"timeouts"`
	Readiness ReadinessConfig `yaml:"readiness" toml:"readiness"`

	// Marker is the handshake text expected at the start of both peers'
	// diagnostic streams.
	Marker string `yaml:"marker" toml:"marker"`

	// Sizes are the payload sizes used by file_transfer and stream_transfer.
	Sizes []ByteSize `yaml:"sizes" toml:"sizes"`

	// Scenarios restricts and orders the scenario kinds that run.
	// Empty means every kind in default order.
	Scenarios []string `yaml:"scenarios" toml:"scenarios"`

	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// ToolConfig describes the transport tool binary.
type ToolConfig struct {
	Path string `yaml:"path" toml:"path"`

	// Env entries ("KEY=value") are appended to the harness environment
	// for both peers.
	Env []string `yaml:"env" toml:"env"`

	// Extra arguments appended after the role arguments.
	ListenerArgs  []string `yaml:"listener_args" toml:"listener_args"`
	ConnectorArgs []string `yaml:"connector_args" toml:"connector_args"`
}

// NetworkConfig holds the listen/connect endpoint.
type NetworkConfig struct {
	Listen   string `yaml:"listen" toml:"listen"`
	Target   string `yaml:"target" toml:"target"`
	Port     int    `yaml:"port" toml:"port"`
	Password string `yaml:"password" toml:"password"`
}

// TimeoutConfig is the single timeout policy. A zero duration means
// unbounded; Teardown must be positive.
type TimeoutConfig struct {
	Handshake Duration `yaml:"handshake" toml:"handshake"`
	Transfer  Duration `yaml:"transfer" toml:"transfer"`
	Teardown  Duration `yaml:"teardown" toml:"teardown"`
}

// ReadinessConfig controls how the harness decides the listener is ready
// before starting the connector. With Marker set, the harness waits for the
// marker on the listener's diagnostic stream (bounded by Timeout); otherwise
// it sleeps Settle.
type ReadinessConfig struct {
	Settle  Duration `yaml:"settle" toml:"settle"`
	Marker  string   `yaml:"marker" toml:"marker"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// Default returns the configuration used when no file is given. The values
// mirror the reference test suite of the transport tool.
func Default() Config {
	return Config{
		Tool: ToolConfig{
			Path: "./quiccat",
		},
		Network: NetworkConfig{
			Listen: "*",
			Target: "127.0.0.1",
			Port:   8888,
		},
		Timeouts: TimeoutConfig{
			Handshake: Duration(10 * time.Second),
			Transfer:  Duration(10 * time.Minute),
			Teardown:  Duration(3 * time.Second),
		},
		Readiness: ReadinessConfig{
			Settle:  Duration(time.Second),
			Timeout: Duration(10 * time.Second),
		},
		Marker:   DefaultMarker,
		Sizes:    []ByteSize{1_000, 100_000, 200_000, 1_000_000, 100_000_000},
		LogLevel: "info",
	}
}

// Load reads a configuration file on top of Default and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	cfg := Default()
	defaultSizes := cfg.Sizes
	cfg.Sizes = nil

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("config load failed (%s): unsupported extension %q", path, ext)
	}

	if cfg.Sizes == nil {
		cfg.Sizes = defaultSizes
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Tool.Path == "" {
		return fmt.Errorf("tool.path is required")
	}
	for i, kv := range c.Tool.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("tool.env[%d]: expected KEY=value, got %q", i, kv)
		}
	}

	if c.Network.Listen == "" {
		return fmt.Errorf("network.listen is required")
	}
	if c.Network.Target == "" {
		return fmt.Errorf("network.target is required")
	}
	if c.Network.Port <= 0 || c.Network.Port > 65535 {
		return fmt.Errorf("network.port %d out of range", c.Network.Port)
	}

	if c.Timeouts.Handshake < 0 || c.Timeouts.Transfer < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if c.Timeouts.Teardown <= 0 {
		return fmt.Errorf("timeouts.teardown must be positive")
	}
	if c.Readiness.Settle < 0 || c.Readiness.Timeout < 0 {
		return fmt.Errorf("readiness durations must be non-negative")
	}

	if c.Marker == "" {
		return fmt.Errorf("marker is required")
	}

	for i, s := range c.Sizes {
		if s < 0 {
			return fmt.Errorf("sizes[%d]: must be non-negative", i)
		}
	}

	for i, kind := range c.Scenarios {
		if !isKnownKind(kind) {
			return fmt.Errorf("scenarios[%d]: unknown scenario kind %q (want one of %v)", i, kind, Kinds)
		}
	}
	if len(c.Sizes) == 0 && (c.runs(KindFileTransfer) || c.runs(KindStreamTransfer)) {
		return fmt.Errorf("sizes must be non-empty when transfer scenarios run")
	}

	return nil
}

// PlanKinds returns the scenario kinds to run, in order.
func (c Config) PlanKinds() []string {
	if len(c.Scenarios) == 0 {
		return append([]string(nil), Kinds...)
	}
	return append([]string(nil), c.Scenarios...)
}

func (c Config) runs(kind string) bool {
	for _, k := range c.PlanKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func isKnownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Duration is a time.Duration that decodes from strings such as "3s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ByteSize is a payload size that decodes from integers or human-readable
// sizes ("1kB", "100MB"). Units are decimal, so "1MB" is 1 000 000 bytes.
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := units.FromHumanSize(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	*b = ByteSize(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", int64(b))), nil
}

// String returns the size in human-readable decimal units.
func (b ByteSize) String() string {
	return units.HumanSize(float64(b))
}
