package redisx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// lockClient is the part of *redis.Client the lock needs.
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// release deletes the key only if this owner still holds it.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a booking.Locker shared by every API instance. Each key is a SET NX PX entry
// with a random owner token; TTL bounds how long a crashed holder blocks others.
type Locker struct {
	Client lockClient
	TTL    time.Duration
	Retry  time.Duration
	Log    *zap.Logger
}

func NewLocker(c *redis.Client, ttl time.Duration, log *zap.Logger) *Locker {
	return &Locker{Client: c, TTL: ttl, Retry: 25 * time.Millisecond, Log: log}
}

func (l *Locker) Lock(ctx context.Context, keys []string) (func(), error) {
	keys = append([]string(nil), keys...)
	sort.Strings(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	unlock := func() {
		// release with a fresh context: the caller's may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := release.Run(rctx, l.Client, []string{held[i]}, token).Err(); err != nil && l.Log != nil {
				l.Log.Warn("redis lock release failed", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		key := fmt.Sprintf(KeyLock, k)
		if err := l.acquire(ctx, key, token); err != nil {
			unlock()
			return nil, err
		}
		held = append(held, key)
	}
	return unlock, nil
}

var errLockTimeout = errors.New("lock not acquired")

func (l *Locker) acquire(ctx context.Context, key, token string) error {
	retry := l.Retry
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %s: %w: %w", key, errLockTimeout, ctx.Err())
		case <-time.After(retry):
		}
	}
}
