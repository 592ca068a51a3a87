package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> OrderStatus JSON
	KeyOrderStatus = "order_status:%d"

	// Dedup event processing per consumer: dedup:{service}:{instance}:{event_id}.
	// Setiap instance relay punya group sendiri, jadi key juga harus per instance.
	KeyDedup = "dedup:%s:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
