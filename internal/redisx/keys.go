package redisx

import "time"

const (
	// Current refresh token id: auth:refresh:{user_id} -> jti
	KeyRefresh = "auth:refresh:%s"

	// Fixed window request counter: ratelimit:{client}:{window_start_unix}
	KeyRateLimit = "ratelimit:%s:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Live notifications pub/sub channel: notifications:{user_id}
	ChanNotifications = "notifications:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
