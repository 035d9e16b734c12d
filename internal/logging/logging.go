package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where a run logs to.
type Options struct {
	File  string
	Level string
	// Quiet suppresses the stderr handler, e.g. while the viewer owns the
	// terminal.
	Quiet bool
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger returns a logger writing to a rotated file and, unless quiet,
// to stderr. Every record carries the run_id of this invocation.
func SetupLogger(opts Options) (*slog.Logger, error) {
	lvl := ParseLevel(opts.Level)

	logDir := filepath.Dir(opts.File)
	if logDir != "" && logDir != "." {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	fileWriter = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
	}

	handlers := []slog.Handler{newHandler(fileWriter, lvl, time.RFC3339, true)}
	if !opts.Quiet {
		noColor := !isatty.IsTerminal(os.Stderr.Fd()) || os.Getenv("NO_COLOR") != ""
		handlers = append(handlers, newHandler(os.Stderr, lvl, time.TimeOnly, noColor))
	}

	return slog.New(&MultiHandler{handlers: handlers}).With("run_id", uuid.NewString()), nil
}

func newHandler(w io.Writer, lvl slog.Level, timeFormat string, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: timeFormat,
		NoColor:    noColor,
	})
}

// MultiHandler fans records out to every handler that accepts the level.
type MultiHandler struct {
	handlers []slog.Handler
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

var fileWriter *lumberjack.Logger

// CloseFile closes the rotated log file, if one was opened.
func CloseFile() error {
	if fileWriter != nil {
		return fileWriter.Close()
	}
	return nil
}
