package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catwalk/internal/config"
	"github.com/roach88/catwalk/internal/peer"
)

func TestScenario_Name(t *testing.T) {
	tests := []struct {
		scenario Scenario
		want     string
	}{
		{Scenario{Kind: KindFileTransfer, Size: 1000}, "file_transfer(1000)"},
		{Scenario{Kind: KindStreamTransfer, Size: 0}, "stream_transfer(0)"},
		{Scenario{Kind: KindHalfClose, Closer: peer.Connector}, "half_close(connector)"},
		{Scenario{Kind: KindHalfClose, Closer: peer.Listener}, "half_close(listener)"},
		{Scenario{Kind: KindInteractive}, "interactive"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.scenario.Name())
	}
}

func TestScenario_Description(t *testing.T) {
	assert.Equal(t, "transfer of a 1000 byte file",
		Scenario{Kind: KindFileTransfer, Size: 1000}.Description())
	assert.Equal(t, "transfer of a 1000 byte file via stdout",
		Scenario{Kind: KindStreamTransfer, Size: 1000}.Description())
	assert.Equal(t, "transfer using stdin/stdout file handles",
		Scenario{Kind: KindInteractive}.Description())
	assert.Equal(t, "closing connection when connector closes stdin",
		Scenario{Kind: KindHalfClose, Closer: peer.Connector}.Description())
}

func TestScenario_Validate(t *testing.T) {
	assert.NoError(t, Scenario{Kind: KindFileTransfer, Size: 0}.Validate())
	assert.NoError(t, Scenario{Kind: KindInteractive}.Validate())
	assert.Error(t, Scenario{Kind: KindFileTransfer, Size: -1}.Validate())
	assert.Error(t, Scenario{Kind: KindHalfClose}.Validate())
	assert.Error(t, Scenario{Kind: "bogus"}.Validate())
	assert.Error(t, Scenario{Kind: KindStreamTransfer, Size: 10, Closer: peer.Listener}.Validate())
	assert.Error(t, Scenario{Kind: KindHalfClose, Closer: peer.Listener, Size: 10}.Validate())
	assert.Error(t, Scenario{Kind: KindInteractive, Closer: peer.Connector}.Validate())
}

func TestDefaultPlan_Order(t *testing.T) {
	plan := DefaultPlan([]int64{1000, 2000})

	assert.Equal(t, []string{
		"half_close(connector)",
		"half_close(listener)",
		"interactive",
		"file_transfer(1000)",
		"stream_transfer(1000)",
		"file_transfer(2000)",
		"stream_transfer(2000)",
	}, plan.Names())
}

func TestBuildPlan_Subset(t *testing.T) {
	plan, err := BuildPlan([]string{config.KindStreamTransfer, config.KindInteractive}, []int64{5})
	require.NoError(t, err)

	assert.Equal(t, []string{"stream_transfer(5)", "interactive"}, plan.Names())
}

func TestBuildPlan_NoSizes(t *testing.T) {
	plan, err := BuildPlan(config.Kinds, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"half_close(connector)", "half_close(listener)", "interactive"}, plan.Names())
}

func TestBuildPlan_UnknownKind(t *testing.T) {
	_, err := BuildPlan([]string{"teleport"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown scenario kind "teleport"`)
}

func TestPlan_Filter(t *testing.T) {
	plan := DefaultPlan([]int64{1000, 2000})

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", plan.Names()},
		{"interactive", []string{"interactive"}},
		{"half_close", []string{"half_close(connector)", "half_close(listener)"}},
		{"*(2000)", []string{"file_transfer(2000)", "stream_transfer(2000)"}},
		{"stream_*", []string{"stream_transfer(1000)", "stream_transfer(2000)"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := plan.Filter(tt.pattern)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got.Names())
		})
	}
}

func TestPlan_FilterInvalidPattern(t *testing.T) {
	_, err := DefaultPlan(nil).Filter("[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestLoadPlan_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := `
scenarios:
  - kind: half_close
    closer: listener
  - kind: stream_transfer
    size: 1MB
  - kind: interactive
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)

	require.Len(t, plan, 3)
	assert.Equal(t, Scenario{Kind: KindHalfClose, Closer: peer.Listener}, plan[0])
	assert.Equal(t, Scenario{Kind: KindStreamTransfer, Size: 1_000_000}, plan[1])
	assert.Equal(t, Scenario{Kind: KindInteractive}, plan[2])
}

func TestLoadPlan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "scenarios: []\n", "scenarios list is required"},
		{"unknown field", "scenarios:\n  - kind: interactive\n    speed: fast\n", "failed to parse YAML"},
		{"unknown kind", "scenarios:\n  - kind: teleport\n", `unknown scenario kind "teleport"`},
		{"bad closer", "scenarios:\n  - kind: half_close\n    closer: nobody\n", `unknown closer "nobody"`},
		{"missing closer", "scenarios:\n  - kind: half_close\n", "closer must be listener or connector"},
		{"closer on transfer", "scenarios:\n  - kind: file_transfer\n    size: 1000\n    closer: listener\n", "closer applies only to half_close"},
		{"closer on interactive", "scenarios:\n  - kind: interactive\n    closer: connector\n", "closer applies only to half_close"},
		{"size on half_close", "scenarios:\n  - kind: half_close\n    closer: listener\n    size: 1kB\n", "size applies only to transfer scenarios"},
		{"zero size on interactive", "scenarios:\n  - kind: interactive\n    size: 0\n", "size applies only to transfer scenarios"},
		{"transfer without size", "scenarios:\n  - kind: stream_transfer\n", "stream_transfer requires size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plan.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadPlan(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPlan_MissingFile(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan file")
}
