package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/paging"
	"go.uber.org/zap"
)

type Service struct {
	Store       Store
	Broadcaster Broadcaster
	Log         *zap.Logger
	Now         func() time.Time
	// Created is called for every stored notification.
	Created func(Type)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type CreateInput struct {
	UserID  string
	Type    Type
	Title   string
	Message string
	Data    map[string]any
	Link    string
}

// Create stores the notification and pushes it to live subscribers. A
// failed push is logged only.
func (s *Service) Create(ctx context.Context, in CreateInput) (Notification, error) {
	if in.UserID == "" || in.Type == "" || in.Title == "" {
		return Notification{}, apperr.Validation("notification needs a user, a type and a title")
	}
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Data:      in.Data,
		Link:      in.Link,
		CreatedAt: s.now(),
	}
	if err := s.Store.CreateNotification(ctx, &n); err != nil {
		return Notification{}, err
	}
	if s.Created != nil {
		s.Created(n.Type)
	}
	if s.Broadcaster != nil {
		if err := s.Broadcaster.Broadcast(ctx, n); err != nil && s.Log != nil {
			s.Log.Warn("broadcast notification", zap.String("user_id", n.UserID), zap.Error(err))
		}
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]Notification, paging.Info, error) {
	p := paging.New(page, limit, 20)
	list, total, err := s.Store.ListNotifications(ctx, userID, unreadOnly, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, p.Info(total), nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.Store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	return s.Store.MarkNotificationRead(ctx, userID, id, s.now())
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.Store.MarkAllNotificationsRead(ctx, userID, s.now())
}

// Subscribe is the live feed used by the websocket stream.
func (s *Service) Subscribe(ctx context.Context, userID string) (<-chan Notification, func(), error) {
	if s.Broadcaster == nil {
		return nil, nil, apperr.NotFound("live notifications are not enabled")
	}
	return s.Broadcaster.Subscribe(ctx, userID)
}
