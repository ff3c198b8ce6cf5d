package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	"github.com/ariefcatur/go-rental-booking/internal/redisx"
)

type cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached keeps the settings of Next in Redis for TTL. A Redis outage degrades to Next.
type Cached struct {
	Next  booking.SettingsProvider
	Redis cache
	TTL   time.Duration
	Log   *zap.Logger
}

func (c *Cached) GetSettings(ctx context.Context) (booking.Settings, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	b, err := c.Redis.Get(ctx, redisx.KeySettings).Bytes()
	switch {
	case err == nil:
		var st booking.Settings
		if jerr := json.Unmarshal(b, &st); jerr == nil {
			return st, nil
		}
		log.Warn("settings cache: bad entry", zap.ByteString("value", b))
	case !errors.Is(err, redis.Nil):
		log.Warn("settings cache: get failed", zap.Error(err))
	}

	st, err := c.Next.GetSettings(ctx)
	if err != nil {
		return booking.Settings{}, err
	}
	if b, err := json.Marshal(st); err == nil {
		if err := c.Redis.Set(ctx, redisx.KeySettings, b, c.TTL).Err(); err != nil {
			log.Warn("settings cache: set failed", zap.Error(err))
		}
	}
	return st, nil
}
