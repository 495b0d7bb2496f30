package redisx

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// New connects and pings. The client is shared by sessions, rate limiting,
// event dedup and notification fan-out.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}
	return r, nil
}
