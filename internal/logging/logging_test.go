package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestSetupLogger_WritesFileWithRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	logger, err := SetupLogger(Options{File: path, Level: "info", Quiet: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseFile() })

	logger.Debug("hidden")
	logger.Info("fetched issues", "count", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "fetched issues")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "run_id=")
	assert.NotContains(t, out, "hidden")
}

func TestMultiHandler_RespectsPerHandlerLevels(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := &MultiHandler{handlers: []slog.Handler{
		newHandler(&debugBuf, slog.LevelDebug, "", true),
		newHandler(&warnBuf, slog.LevelWarn, "", true),
	}}
	logger := slog.New(h).With("component", "test")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	logger.Info("info line")
	logger.Warn("warn line")

	assert.Contains(t, debugBuf.String(), "info line")
	assert.Contains(t, debugBuf.String(), "warn line")
	assert.NotContains(t, warnBuf.String(), "info line")
	assert.Contains(t, warnBuf.String(), "component=test")
}
