// Package glog provides the logger used across the genie execution core.
package glog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with convenience methods
type Logger struct {
	*slog.Logger
}

// textHandler formats records as "LEVEL message key=value key=value"
type textHandler struct {
	level  slog.Level
	output io.Writer
	attrs  []slog.Attr
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	switch r.Level {
	case slog.LevelDebug:
		b.WriteString("DEBUG ")
	case slog.LevelInfo:
		b.WriteString("INFO  ")
	case slog.LevelWarn:
		b.WriteString("WARN  ")
	case slog.LevelError:
		b.WriteString("ERROR ")
	}

	b.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	b.WriteString("\n")
	_, err := h.output.Write([]byte(b.String()))
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &textHandler{level: h.level, output: h.output, attrs: merged}
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	// Groups are not used in this codebase
	return h
}

// NewLogger creates a new logger with the specified level and output
func NewLogger(level slog.Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}

	return &Logger{
		Logger: slog.New(&textHandler{level: level, output: output}),
	}
}

// NewDefault creates a logger with INFO level
func NewDefault() *Logger {
	return NewLogger(slog.LevelInfo, os.Stderr)
}

// NewQuiet creates a logger with WARN level (suppresses info/debug)
func NewQuiet() *Logger {
	return NewLogger(slog.LevelWarn, os.Stderr)
}

// NewVerbose creates a logger with DEBUG level
func NewVerbose() *Logger {
	return NewLogger(slog.LevelDebug, os.Stderr)
}

// Discard creates a logger that drops everything. Used in tests.
func Discard() *Logger {
	return NewLogger(slog.LevelError+1, io.Discard)
}

// With returns a logger with the given attributes attached to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Fatal logs at ERROR level and exits with code 1
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}

// Fatalf formats and logs at ERROR level, then exits with code 1
func (l *Logger) Fatalf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
