package app

import (
	"context"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	ctx := context.Background()

	dev := NewLogger("dev")
	assert.True(t, dev.Enabled(ctx, slog.LevelDebug))

	prod := NewLogger("prod")
	assert.False(t, prod.Enabled(ctx, slog.LevelDebug))
	assert.True(t, prod.Enabled(ctx, slog.LevelInfo))
}

func TestNewLoggerLevelOverride(t *testing.T) {
	ctx := context.Background()

	t.Setenv("LOG_LEVEL", "debug")
	assert.True(t, NewLogger("prod").Enabled(ctx, slog.LevelDebug))

	t.Setenv("LOG_LEVEL", "error")
	assert.False(t, NewLogger("dev").Enabled(ctx, slog.LevelWarn))
	assert.True(t, NewLogger("dev").Enabled(ctx, slog.LevelError))
}
