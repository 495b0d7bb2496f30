package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster fans notifications out over redis pub/sub so the notifier
// process can reach websocket clients held by the API.
type Broadcaster struct {
	RDB *redis.Client
	Log *zap.Logger
}

func (b Broadcaster) Broadcast(ctx context.Context, n notifications.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return errors.Wrap(b.RDB.Publish(ctx, fmt.Sprintf(ChanNotifications, n.UserID), raw).Err(), "publish notification")
}

func (b Broadcaster) Subscribe(ctx context.Context, userID string) (<-chan notifications.Notification, func(), error) {
	ps := b.RDB.Subscribe(ctx, fmt.Sprintf(ChanNotifications, userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, errors.Wrap(err, "subscribe notifications")
	}
	out := make(chan notifications.Notification, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var n notifications.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				if b.Log != nil {
					b.Log.Warn("bad notification on pubsub", zap.String("channel", msg.Channel), zap.Error(err))
				}
				continue
			}
			select {
			case out <- n:
			default:
			}
		}
	}()
	return out, func() { _ = ps.Close() }, nil
}
