package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock takes a lease on key for ttl on behalf of holder. It returns false
// when another holder owns the lease.
func (r *Redis) TryLock(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return false, errors.New("redis client not configured")
	}
	return r.Client.SetNX(ctx, key, holder, ttl).Result()
}

// Unlock releases the lease if holder still owns it.
func (r *Redis) Unlock(ctx context.Context, key, holder string) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return releaseScript.Run(ctx, r.Client, []string{key}, holder).Err()
}
