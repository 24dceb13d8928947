package redisx

import "time"

const (
	// Dedup of consumed events: dedup:{service}:{event_id} -> 1
	KeyDedup = "dedup:%s:%s"

	// Item lock while an adjustment run is in flight: lock:item:{inventory_item_id} -> token
	KeyItemLock = "lock:item:%d"
)

var (
	TTLDedup    = 48 * time.Hour
	TTLItemLock = 10 * time.Second
)
