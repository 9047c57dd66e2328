// Package logger constructs the daemon's structured logger. The "text"
// format produces the daemon's required line shape,
// "[YYYY-MM-DD HH:MM:SS] [LEVEL] message key=value ...", splitting info/warn
// to stdout and error to stderr; "json" produces one slog JSON object per
// line on stdout, for log shippers that expect it.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds a *slog.Logger at the given level ("debug", "info", "warn",
// "error"; invalid or empty defaults to "info") and format ("text", "json";
// invalid or empty defaults to "text").
func New(level, format string) *slog.Logger {
	return NewWithWriters(os.Stdout, os.Stderr, level, format)
}

// NewWithWriters is New with explicit stdout/stderr targets, used by tests.
func NewWithWriters(stdout, stderr io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)

	if parseFormat(format) == "json" {
		return slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(newLineHandler(stdout, stderr, lvl))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func parseFormat(format string) string {
	if format == "json" {
		return "json"
	}
	return "text"
}
