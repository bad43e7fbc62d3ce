package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	l.Named("walker").Debug("page collected", zap.Int("page", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "rtdcheck.walker", entry["logger"])
	assert.Equal(t, "page collected", entry["msg"])
	assert.Equal(t, float64(2), entry["page"])
}

func TestNewConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LoggingConfig{Level: "warn", Format: "console", Color: true}, &buf)
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "\x1b[", "levels are coloured")

	buf.Reset()
	plain := New(config.LoggingConfig{Level: "bogus", Format: "console"}, &buf)
	plain.Info("falls back to info")
	assert.Contains(t, buf.String(), "INFO")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestFileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtdcheck.log")
	var buf bytes.Buffer
	l := New(config.LoggingConfig{Level: "info", Format: "console", File: path, MaxSizeMB: 1}, &buf)
	l.Info("to both")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{"), "the file is always JSON")
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestGlobal(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, L(), "a no-op logger before Initialize")
	Named("bridge").Info("dropped")

	var first, second bytes.Buffer
	Initialize(config.LoggingConfig{Level: "info", Format: "json"}, &first)
	Initialize(config.LoggingConfig{Level: "info", Format: "json"}, &second)
	Named("runner").Info("scheduled")
	Sync()

	assert.Contains(t, first.String(), "rtdcheck.runner")
	assert.Empty(t, second.String(), "only the first Initialize takes effect")
}
