package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	"github.com/ariefcatur/go-rental-booking/internal/config"
	"github.com/ariefcatur/go-rental-booking/internal/redisx"
)

func TestFromConfig(t *testing.T) {
	cfg := config.Config{GSTPercent: "18", LateFeeRate: "0.1", GracePeriodHours: "24", Currency: "INR", PaymentTermDays: 7}
	p, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(18).Equal(p.S.GSTPercent))
	assert.True(t, decimal.RequireFromString("0.1").Equal(p.S.LateFeeRate))
	assert.Equal(t, 7, p.S.PaymentTermDays)

	cfg.LateFeeRate = "ten percent"
	_, err = FromConfig(cfg)
	assert.ErrorContains(t, err, "LATE_FEE_RATE")

	cfg.LateFeeRate = "-0.1"
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}

type fakeCache struct {
	data   map[string]string
	getErr error
	sets   int
}

func (c *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	if c.getErr != nil {
		return redis.NewStringResult("", c.getErr)
	}
	v, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	c.sets++
	c.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingProvider struct {
	s     booking.Settings
	calls int
}

func (p *countingProvider) GetSettings(context.Context) (booking.Settings, error) {
	p.calls++
	return p.s, nil
}

func TestCachedReadsThrough(t *testing.T) {
	next := &countingProvider{s: booking.Settings{GSTPercent: decimal.NewFromInt(5), Currency: "INR", PaymentTermDays: 14}}
	fc := &fakeCache{data: map[string]string{}}
	c := &Cached{Next: next, Redis: fc, TTL: time.Minute}
	ctx := context.Background()

	st, err := c.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, st.PaymentTermDays)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, fc.sets)

	st, err = c.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(st.GSTPercent))
	assert.Equal(t, 1, next.calls, "second read is served from redis")

	var cached booking.Settings
	require.NoError(t, json.Unmarshal([]byte(fc.data[redisx.KeySettings]), &cached))
	assert.Equal(t, "INR", cached.Currency)
}

func TestCachedFallsBackWhenRedisIsDown(t *testing.T) {
	next := &countingProvider{s: booking.Settings{Currency: "INR"}}
	c := &Cached{Next: next, Redis: &fakeCache{data: map[string]string{}, getErr: errors.New("dial tcp: refused")}, TTL: time.Minute}

	st, err := c.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "INR", st.Currency)
	assert.Equal(t, 1, next.calls)
}
