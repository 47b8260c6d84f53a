package app

import (
	"os"
	"strings"

	"log/slog"
)

// NewLogger returns a slog.Logger for the given env:
// prod JSON logs at INFO level, others Text logs at DEBUG level.
// A LOG_LEVEL env var (debug/info/warn/error) overrides the level either way.
func NewLogger(env string) *slog.Logger {
	lvl := slog.LevelDebug
	if env == "prod" {
		lvl = slog.LevelInfo
	}
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
