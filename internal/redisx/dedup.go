package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type dedupClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Dedup remembers processed event ids per service.
type Dedup struct {
	Client  dedupClient
	Service string
	TTL     time.Duration
}

// FirstSeen atomically marks eventID as processed and reports whether this call did so.
func (d *Dedup) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	return d.Client.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", ttl).Result()
}

// Forget drops the mark set by FirstSeen so a redelivery of eventID is processed again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.Client.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
