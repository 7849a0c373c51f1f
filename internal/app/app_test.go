package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/config"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:     env,
		Storage: config.StorageMemory,
		Log:     config.Log{Level: "debug"},
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json in prod", func(t *testing.T) {
		var buf bytes.Buffer

		logger := NewLogger(testConfig(config.EnvProd), &buf)
		logger.Info("hello")

		assert.Contains(t, buf.String(), `"hello"`)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer

		cfg := testConfig(config.EnvDev)
		cfg.Log.Level = "loud"

		logger := NewLogger(cfg, &buf)

		assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	})
}

func TestNewStore_Memory(t *testing.T) {
	var buf bytes.Buffer

	cfg := testConfig(config.EnvDev)
	store, closeStore, err := newStore(context.Background(), cfg, NewLogger(cfg, &buf))

	require.NoError(t, err)
	assert.IsType(t, &memory.URLRepository{}, store)
	assert.NoError(t, closeStore())
}
