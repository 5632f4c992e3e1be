package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ticketing-engine/internal/lock"
	"ticketing-engine/internal/logger"
)

var _ lock.Locker = (*Locker)(nil)

var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a lock.Locker backed by Redis SET NX, for deployments running
// more than one instance against the same database.
type Locker struct {
	Client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *logger.Logger

	newToken func() string
}

func NewLocker(client *redis.Client, prefix string, ttl, retry time.Duration, log *logger.Logger) *Locker {
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &Locker{
		Client:   client,
		prefix:   prefix,
		ttl:      ttl,
		retry:    retry,
		log:      log,
		newToken: uuid.NewString,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := l.newToken()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w: %v", key, ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(redisKey, token string) {
	// The caller's context may already be cancelled; releasing must still happen.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := l.Client.Eval(ctx, releaseScript, []string{redisKey}, token).Int64()
	if err != nil {
		l.log.Error("REDIS", fmt.Sprintf("Failed to release lock %s: %v", redisKey, err))
		return
	}
	if n == 0 {
		l.log.Warn("REDIS", fmt.Sprintf("Lock %s expired before release", redisKey))
	}
}

func (l *Locker) Ping(ctx context.Context) error {
	return l.Client.Ping(ctx).Err()
}
