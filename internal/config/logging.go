package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger: text by default, JSON when json is set.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	handlerLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: handlerLevel}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Logger builds the logger described by the logging section.
func (l LoggingConfig) Logger(w io.Writer) *slog.Logger {
	return NewLogger(w, l.Level, l.JSON)
}
