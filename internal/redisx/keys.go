package redisx

import "time"

const (
	// Cached order view: order:{order_id} -> JSON of booking.Order
	KeyOrderView = "order:%s"

	// Product lock held during Confirm: lock:product:{product_id} -> owner token
	KeyLock = "lock:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Business settings snapshot
	KeySettings = "settings:rental"
)

var (
	TTLOrderView = 30 * time.Second // bounds how long a raced read can serve a stale order
	TTLDedup     = 48 * time.Hour
)
