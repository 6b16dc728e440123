package redis

import (
	"context"
	"time"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ adapter.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-instance SETNX lock; the token guards Unlock so a
// holder whose TTL lapsed cannot release someone else's lock.
type RedisLocker struct {
	cli      *redis.Client
	attempts int
	backoff  time.Duration
}

func NewLocker(c *redClient) *RedisLocker {
	return &RedisLocker{cli: c.cli, attempts: 5, backoff: 50 * time.Millisecond}
}

// WithRetry sets how often TryLock polls a held key. attempts=1 fails fast.
func (l *RedisLocker) WithRetry(attempts int, backoff time.Duration) *RedisLocker {
	if attempts < 1 {
		attempts = 1
	}
	l.attempts, l.backoff = attempts, backoff
	return l
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		if i == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrLockNotAcquired
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
