package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/config"
	"github.com/spec-kit/lead-dispatch/internal/domain"
)

var testConfig = config.DispatchConfig{
	ExternalSLAMinutes:  15,
	InternalSLAMinutes:  30,
	MaxExternalAttempts: 3,
	MaxInternalAttempts: 2,
	SettingsKey:         "dispatch:settings",
}

func newProvider(t *testing.T) (*RedisProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisProvider(client, testConfig, zap.NewNop()), mr
}

func TestRedisProviderFallsBackToDefaults(t *testing.T) {
	p, _ := newProvider(t)
	assert.Equal(t, Defaults(testConfig), p.Get(context.Background()))
}

func TestRedisProviderReadsOverrides(t *testing.T) {
	p, mr := newProvider(t)
	mr.HSet("dispatch:settings", FieldExternalSLAMinutes, "5", FieldMaxInternalAttempts, "4")

	got := p.Get(context.Background())
	assert.Equal(t, domain.DispatchSettings{
		ExternalSLAMinutes:  5,
		InternalSLAMinutes:  30,
		MaxExternalAttempts: 3,
		MaxInternalAttempts: 4,
	}, got)
}

func TestRedisProviderChangesApplyToNextRead(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, FieldExternalSLAMinutes, 1))
	assert.Equal(t, 1, p.Get(ctx).ExternalSLAMinutes)
	require.NoError(t, p.Set(ctx, FieldExternalSLAMinutes, 7))
	assert.Equal(t, 7, p.Get(ctx).ExternalSLAMinutes)
}

func TestRedisProviderInvalidValuesBecomeZero(t *testing.T) {
	p, mr := newProvider(t)
	mr.HSet("dispatch:settings", FieldExternalSLAMinutes, "-3", FieldMaxExternalAttempts, "lots")

	got := p.Get(context.Background())
	assert.Equal(t, 0, got.ExternalSLAMinutes)
	assert.Equal(t, 0, got.MaxExternalAttempts)
	assert.Equal(t, 30, got.InternalSLAMinutes)
}

func TestRedisProviderUnavailableUsesDefaults(t *testing.T) {
	p, mr := newProvider(t)
	mr.HSet("dispatch:settings", FieldExternalSLAMinutes, "5")
	mr.Close()
	assert.Equal(t, Defaults(testConfig), p.Get(context.Background()))
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(testConfig)
	assert.Equal(t, 15, p.Get(context.Background()).ExternalSLAMinutes)
}
