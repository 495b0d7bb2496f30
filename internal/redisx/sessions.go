package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Sessions keeps the current refresh token id per user, so a restart or a
// second API replica still honours rotation.
type Sessions struct {
	RDB redis.Cmdable
}

func (s Sessions) SaveRefresh(ctx context.Context, userID, tokenID string, ttl time.Duration) error {
	return errors.Wrap(s.RDB.Set(ctx, fmt.Sprintf(KeyRefresh, userID), tokenID, ttl).Err(), "save refresh token")
}

func (s Sessions) CurrentRefresh(ctx context.Context, userID string) (string, error) {
	v, err := s.RDB.Get(ctx, fmt.Sprintf(KeyRefresh, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load refresh token")
	}
	return v, nil
}

func (s Sessions) DeleteRefresh(ctx context.Context, userID string) error {
	return errors.Wrap(s.RDB.Del(ctx, fmt.Sprintf(KeyRefresh, userID)).Err(), "delete refresh token")
}
