package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/config"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedis(config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	t.Cleanup(r.Close)
	return r, mr
}

func TestRedisLease(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	ok, err := r.TryLock(ctx, "sweeper", "node-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.TryLock(ctx, "sweeper", "node-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Unlock(ctx, "sweeper", "node-b"))
	assert.True(t, mr.Exists("sweeper"))

	require.NoError(t, r.Unlock(ctx, "sweeper", "node-a"))
	assert.False(t, mr.Exists("sweeper"))

	ok, err = r.TryLock(ctx, "sweeper", "node-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLeaseExpires(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	ok, err := r.TryLock(ctx, "sweeper", "node-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = r.TryLock(ctx, "sweeper", "node-b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisPing(t *testing.T) {
	r, mr := newTestRedis(t)
	require.NoError(t, r.Ping(context.Background()))

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))

	var missing *Redis
	assert.Error(t, missing.Ping(context.Background()))
}

func TestRedisAppliesTimeouts(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(config.RedisConfig{Addr: mr.Addr(), TimeoutMillis: 250}, zap.NewNop())
	t.Cleanup(r.Close)
	opts := r.Client.Options()
	assert.Equal(t, 250*time.Millisecond, opts.DialTimeout)
	assert.Equal(t, 250*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 250*time.Millisecond, opts.WriteTimeout)
}

func TestRedisUnreachableIsNotFatal(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	started := time.Now()
	r := NewRedis(config.RedisConfig{Addr: addr, TimeoutMillis: 100}, zap.NewNop())
	t.Cleanup(r.Close)
	assert.Less(t, time.Since(started), time.Second)
	assert.Error(t, r.Ping(context.Background()))
}

func TestPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pg.PoolHandle())
	assert.Error(t, pg.Ping(context.Background()))
	require.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}
