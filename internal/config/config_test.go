package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISPATCH_EXTERNAL_SLA_MINUTES", "")
	t.Setenv("SWEEPER_BATCH_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Dispatch.ExternalSLAMinutes)
	assert.Equal(t, 3, cfg.Dispatch.MaxExternalAttempts)
	assert.Equal(t, 100, cfg.Sweeper.BatchSize)
	assert.Equal(t, "dispatch:settings", cfg.Dispatch.SettingsKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISPATCH_EXTERNAL_SLA_MINUTES", "5")
	t.Setenv("DISPATCH_MAX_INTERNAL_ATTEMPTS", "not-a-number")
	t.Setenv("SWEEPER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Dispatch.ExternalSLAMinutes)
	assert.Equal(t, 2, cfg.Dispatch.MaxInternalAttempts)
	assert.False(t, cfg.Sweeper.Enabled)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")
	_, err := Load()
	assert.Error(t, err)
}

func TestSweeperDurations(t *testing.T) {
	s := SweeperConfig{IntervalSeconds: 10, CycleTimeoutSeconds: 60}
	assert.Equal(t, 10*time.Second, s.Interval())
	assert.Equal(t, 10*time.Second, s.CycleTimeout())

	s = SweeperConfig{}
	assert.Equal(t, 30*time.Second, s.Interval())
	assert.Equal(t, 30*time.Second, s.CycleTimeout())
}

func TestStalledGrace(t *testing.T) {
	assert.Equal(t, 90*time.Second, SweeperConfig{StalledGraceSeconds: 90}.StalledGrace())
	assert.Equal(t, time.Duration(0), SweeperConfig{StalledGraceSeconds: -5}.StalledGrace())
}

func TestLoggerAndRedisSettings(t *testing.T) {
	t.Setenv("APP_NAME", "dispatch-eu")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("REDIS_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "dispatch-eu", cfg.Logger.Service)
	assert.Equal(t, "staging", cfg.Logger.Env)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.Timeout())
	assert.Equal(t, time.Duration(0), RedisConfig{}.Timeout())
}
