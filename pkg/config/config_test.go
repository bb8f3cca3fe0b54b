package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOFT_POSTGRES_URL", "postgres://localhost/loft")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, "db", cfg.Audit.Backend)
	assert.Equal(t, 8, cfg.Authz.BatchLimit)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("LOFT_POSTGRES_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOFT_POSTGRES_URL")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOFT_POSTGRES_URL", "postgres://localhost/loft")
	t.Setenv("LOFT_PORT", "9090")
	t.Setenv("LOFT_CACHE_BACKEND", "redis")
	t.Setenv("LOFT_REDIS_URL", "localhost:6379")
	t.Setenv("LOFT_CACHE_TTL", "2m")
	t.Setenv("LOFT_AUTHZ_BATCH_LIMIT", "16")
	t.Setenv("LOFT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 16, cfg.Authz.BatchLimit)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestLoadRedisBackendRequiresURL(t *testing.T) {
	t.Setenv("LOFT_POSTGRES_URL", "postgres://localhost/loft")
	t.Setenv("LOFT_CACHE_BACKEND", "redis")
	t.Setenv("LOFT_REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOFT_REDIS_URL")
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("LOFT_POSTGRES_URL", "postgres://localhost/loft")
	t.Setenv("LOFT_CACHE_BACKEND", "memcached")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LOFT_CACHE_BACKEND", "memory")
	t.Setenv("LOFT_AUDIT_BACKEND", "kafka")

	_, err = Load()
	assert.Error(t, err)
}

func TestLoadMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("LOFT_POSTGRES_URL", "postgres://localhost/loft")
	t.Setenv("LOFT_CACHE_SIZE", "not-a-number")
	t.Setenv("LOFT_READ_TIMEOUT", "soon")
	t.Setenv("LOFT_LOG_LEVEL", "loud")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}
