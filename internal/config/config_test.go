package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/fsmtask/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, config.StoreFile, cfg.StoreKind)
	assert.Equal(t, ".fsmtask/tasks", cfg.Dir)
	assert.Equal(t, "id", cfg.IDField)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.False(t, cfg.EntityLock)
	assert.True(t, cfg.Metrics)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FSMTASK_STORE", "redis")
	t.Setenv("FSMTASK_REDIS_ADDR", "cache:6380")
	t.Setenv("FSMTASK_REDIS_TTL", "1h")
	t.Setenv("FSMTASK_ENTITY_LOCK", "true")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, config.StoreRedis, cfg.StoreKind)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.RedisTTL)
	assert.True(t, cfg.EntityLock)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FSMTASK_PG_TABLE=orders\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FSMTASK_PG_TABLE") })

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.PostgresTable)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("FSMTASK_STORE", "cassandra")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, config.ErrUnknownStore)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("FSMTASK_LOCK_TTL", "soon")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
