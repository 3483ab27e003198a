package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5*time.Minute, cfg.NonceTTL)
	assert.Equal(t, 60, cfg.RateLimitPerMin)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("NONCE_TTL", "90s")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DEVELOPER_UPGRADE_GAME_ID", "dev-upgrade")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.NonceTTL)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "dev-upgrade", cfg.DeveloperUpgradeGameID)
}

func TestLoadRejectsMissingSecretInProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "firestore")

	_, err := config.Load()
	assert.Error(t, err)
}
