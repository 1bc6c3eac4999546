package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AwardLock implements saga.AwardLock with SET NX PX.
type AwardLock struct {
	client *redis.Client
}

// NewAwardLock creates a lock backed by the cache connection.
func NewAwardLock(cache *Cache) *AwardLock {
	return &AwardLock{client: cache.Client()}
}

// Acquire takes the lock for ttl. Another holder yields shared.ErrLockNotAcquired.
func (l *AwardLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}

	lockKey := LockKey(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, shared.ErrLockNotAcquired
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", lockKey, err)
		}
		return nil
	}, nil
}
