package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed window counter shared by all API replicas.
type RateLimiter struct {
	RDB    redis.Cmdable
	Max    int
	Window time.Duration
	Now    func() time.Time
}

// Allow counts one request for client and reports whether it fits in the
// current window.
func (l RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	start := now.Truncate(l.Window).Unix()
	key := fmt.Sprintf(KeyRateLimit, client, start)

	pipe := l.RDB.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "rate limit incr")
	}
	return incr.Val() <= int64(l.Max), nil
}
