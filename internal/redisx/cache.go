package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// OrderCache holds order views filled on read and dropped on each transition. The store stays
// the source of truth; callers fall back to it on a miss. A read that raced a transition may
// put back the older view, which then lives at most TTL.
type OrderCache struct {
	Client kv
	TTL    time.Duration
}

func NewOrderCache(c *redis.Client) *OrderCache {
	return &OrderCache{Client: c, TTL: TTLOrderView}
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (booking.Order, bool) {
	b, err := c.Client.Get(ctx, fmt.Sprintf(KeyOrderView, orderID)).Bytes()
	if err != nil {
		return booking.Order{}, false
	}
	var o booking.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return booking.Order{}, false
	}
	return o, true
}

func (c *OrderCache) Put(ctx context.Context, o booking.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, fmt.Sprintf(KeyOrderView, o.ID), b, c.TTL).Err()
}

func (c *OrderCache) Forget(ctx context.Context, orderID string) error {
	return c.Client.Del(ctx, fmt.Sprintf(KeyOrderView, orderID)).Err()
}
