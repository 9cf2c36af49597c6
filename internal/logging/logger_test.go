package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_WritesAppAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "catwalk", "info")
	logger.Info("hello", "scenario", "half_close")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "app=catwalk")
	assert.Contains(t, out, "scenario=half_close")
	assert.Contains(t, out, "pid=")
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "catwalk", "warn")
	logger.Info("quiet")
	logger.Debug("quieter")
	assert.Empty(t, buf.String())

	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestDiscard(t *testing.T) {
	// Must not panic and must be usable.
	Discard().Error("dropped")
}
