package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.GetCORSOrigins())
	assert.Equal(t, 10*time.Second, cfg.GetLockTTL())
	assert.Equal(t, 3*time.Second, cfg.GetLockWait())
	assert.Equal(t, "US", cfg.GetPhoneRegion())
	assert.True(t, cfg.GetMigrationsEnabled())
	assert.False(t, cfg.IsDistributedLockEnabled())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRejectsWildcardCORSWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	_, err := Load()
	assert.ErrorContains(t, err, "CORS_ALLOW_CREDENTIALS")
}

func TestLoadFallsBackOnBadDurations(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("LOCK_TTL", "soon")
	t.Setenv("LOCK_WAIT", "500ms")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.GetLockTTL())
	assert.Equal(t, 500*time.Millisecond, cfg.GetLockWait())
	assert.True(t, cfg.IsDistributedLockEnabled())
}
