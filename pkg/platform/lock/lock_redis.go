package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veritag/pkg/platform/sentinel"
)

const lockKeyPrefix = "vlk:"

// releaseScript deletes the lock only when it is still held by the caller's
// token. A plain GET+DEL would race with TTL expiry and free another
// holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a distributed Locker using the SET NX pattern. This is the
// production wiring when multiple instances share certificate state.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := newToken()
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %q: %w", key, sentinel.ErrUnavailable)
	}
	if !ok {
		return "", fmt.Errorf("lock %q is held: %w", key, sentinel.ErrConflict)
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %q: %w", key, sentinel.ErrUnavailable)
	}
	if deleted == 0 {
		return fmt.Errorf("lock %q not held by token: %w", key, sentinel.ErrConflict)
	}
	return nil
}
