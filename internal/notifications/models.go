package notifications

import (
	"context"
	"time"

	"github.com/kmercart/kmercart-api/internal/paging"
)

type Type string

const (
	TypeOrderPlaced     Type = "order_placed"
	TypeOrderShipped    Type = "order_shipped"
	TypeOrderDelivered  Type = "order_delivered"
	TypePayoutProcessed Type = "payout_processed"
	TypeLowStock        Type = "low_stock"
	TypeNewReview       Type = "new_review"
	TypeAccountUpdate   Type = "account_update"
	TypePromotion       Type = "promotion"
)

type Notification struct {
	ID        string         `json:"_id"`
	UserID    string         `json:"userId"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"isRead"`
	Link      string         `json:"link,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
}

type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, p paging.Page) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkNotificationRead returns not-found when id does not belong to userID.
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
}

// Broadcaster pushes fresh notifications to connected clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, n Notification) error
	// Subscribe returns a channel of userID's notifications and a function
	// that ends the subscription.
	Subscribe(ctx context.Context, userID string) (<-chan Notification, func(), error)
}
