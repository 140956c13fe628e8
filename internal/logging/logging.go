package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init creates and sets the package-level default slog logger.
// When outputIsStdout is true, uses JSONHandler on stderr (avoids mixing with NDJSON output).
// Otherwise uses TextHandler on stderr for human readability.
// attrs, such as the run id, are attached to every record.
func Init(outputIsStdout bool, level slog.Level, attrs ...slog.Attr) *slog.Logger {
	logger := New(os.Stderr, outputIsStdout, level, attrs...)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w without installing it as the default.
func New(w io.Writer, jsonFormat bool, level slog.Level, attrs ...slog.Attr) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(handler)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
