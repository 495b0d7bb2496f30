package memstore

import (
	"context"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/paging"
)

func (s *Store) CreateNotification(_ context.Context, n *notifications.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = cloneNotification(*n)
	s.noteSeq = append(s.noteSeq, n.ID)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, p paging.Page) ([]notifications.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := newestFirst(s.noteSeq, func(id string) (notifications.Notification, bool) {
		n, ok := s.notes[id]
		return n, ok
	}, func(n notifications.Notification) time.Time { return n.CreatedAt })
	var match []notifications.Notification
	for _, n := range all {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		match = append(match, cloneNotification(n))
	}
	return paging.Slice(match, p), len(match), nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := 0
	for _, n := range s.notes {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string, at time.Time) (notifications.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.UserID != userID {
		return notifications.Notification{}, apperr.NotFound("notification not found")
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
		s.notes[id] = n
	}
	return cloneNotification(n), nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := 0
	for id, n := range s.notes {
		if n.UserID == userID && !n.IsRead {
			readAt := at
			n.IsRead, n.ReadAt = true, &readAt
			s.notes[id] = n
			c++
		}
	}
	return c, nil
}
