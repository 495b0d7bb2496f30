package redisx

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Dedup records processed event ids with SETNX.
type Dedup struct {
	RDB redis.Cmdable
}

func (d Dedup) MarkOnce(ctx context.Context, service, key string) (bool, error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, service, key), "1", TTLDedup).Result()
	if err != nil {
		return false, errors.Wrap(err, "dedup setnx")
	}
	return ok, nil
}

func (d Dedup) Release(ctx context.Context, service, key string) error {
	return errors.Wrap(d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, key)).Err(), "dedup release")
}
