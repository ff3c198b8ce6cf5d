package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "KAFKA_BROKERS", "STORE_DRIVER", "PAYMENT_TERM_DAYS", "LOCK_TTL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 7, cfg.PaymentTermDays)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("READ_RETRIES", "5")
	t.Setenv("SETTINGS_CACHE_TTL", "30s")
	t.Setenv("NOTIFIER_WORKERS", "not-a-number")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.ReadRetries)
	assert.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
	assert.Equal(t, 4, cfg.NotifierWorkers)
}
