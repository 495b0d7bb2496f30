package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/paging"
)

const notificationColumns = `id, user_id, type, title, message, data, is_read, link, created_at, read_at`

func scanNotification(row pgx.Row) (notifications.Notification, error) {
	var n notifications.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.Link, &n.CreatedAt, &n.ReadAt)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, n *notifications.Notification) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO notifications(`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.IsRead, n.Link, n.CreatedAt, n.ReadAt)
	return mapErr(err, "notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, p paging.Page) ([]notifications.Notification, int, error) {
	cond := ` WHERE user_id=$1`
	if unreadOnly {
		cond += ` AND NOT is_read`
	}
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+cond, userID).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count notifications")
	}
	rows, err := s.DB.Query(ctx, `SELECT `+notificationColumns+` FROM notifications`+cond+`
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, mapErr(err, "list notifications")
	}
	defer rows.Close()

	out := []notifications.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, mapErr(err, "scan notification")
		}
		out = append(out, n)
	}
	return out, total, mapErr(rows.Err(), "list notifications")
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&n)
	return n, mapErr(err, "count notifications")
}

// MarkNotificationRead keeps the first read time of an already read
// notification.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (notifications.Notification, error) {
	n, err := scanNotification(s.DB.QueryRow(ctx, `
		UPDATE notifications SET is_read=true, read_at=COALESCE(read_at, $3)
		WHERE id=$1 AND user_id=$2
		RETURNING `+notificationColumns, id, userID, at))
	return n, mapErr(err, "notification")
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	ct, err := s.DB.Exec(ctx, `UPDATE notifications SET is_read=true, read_at=$2 WHERE user_id=$1 AND NOT is_read`, userID, at)
	if err != nil {
		return 0, mapErr(err, "notifications")
	}
	return int(ct.RowsAffected()), nil
}
