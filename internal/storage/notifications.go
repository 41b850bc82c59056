package db

import (
	"context"
	"encoding/json"
	"time"
)

type Notification struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	NotificationType string          `json:"notification_type"`
	Title            string          `json:"title"`
	Body             string          `json:"body"`
	Payload          json.RawMessage `json:"payload"`
	IsRead           bool            `json:"is_read"`
	ReadAt           *time.Time      `json:"read_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (db *DB) InsertNotification(ctx context.Context, userID, notificationType, title, body string, payload json.RawMessage) (*Notification, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	var n Notification

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, notification_type, title, body, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, notification_type, title, body, payload, is_read, read_at, created_at
	`, toUUID(userID), notificationType, SanitizeUTF8(title), SanitizeUTF8(body), payload).Scan(
		&n.ID, &n.UserID, &n.NotificationType, &n.Title, &n.Body, &n.Payload, &n.IsRead, &n.ReadAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, wrapRowError(err, "insert notification")
	}

	return &n, nil
}

type NotificationPage struct {
	Items       []Notification `json:"items"`
	Total       int64          `json:"total"`
	UnreadCount int64          `json:"unread_count"`
	Page        int            `json:"page"`
	Limit       int            `json:"limit"`
	Pages       int            `json:"pages"`
}

func (db *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}

	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	where := "user_id = $1"
	if unreadOnly {
		where += " AND NOT is_read"
	}

	var total, unread int64

	err := db.Pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE `+where+`),
			count(*) FILTER (WHERE user_id = $1 AND NOT is_read)
		FROM notifications
	`, toUUID(userID)).Scan(&total, &unread)
	if err != nil {
		return nil, wrapRowError(err, "count notifications")
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, notification_type, title, body, payload, is_read, read_at, created_at
		FROM notifications
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, toUUID(userID), limit, (page-1)*limit)
	if err != nil {
		return nil, wrapRowError(err, "list notifications")
	}
	defer rows.Close()

	items := []Notification{}

	for rows.Next() {
		var n Notification

		if err := rows.Scan(&n.ID, &n.UserID, &n.NotificationType, &n.Title, &n.Body,
			&n.Payload, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, wrapRowError(err, "scan notification")
		}

		items = append(items, n)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRowError(err, "list notifications rows")
	}

	return &NotificationPage{
		Items:       items,
		Total:       total,
		UnreadCount: unread,
		Page:        page,
		Limit:       limit,
		Pages:       pageCount(total, limit),
	}, nil
}

func (db *DB) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND user_id = $2 AND NOT is_read
	`, toUUID(notificationID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "mark notification read")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "mark notification read")
	}

	return nil
}

// MarkAllNotificationsRead marks everything unread as read, returning the
// number of rows touched.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = now()
		WHERE user_id = $1 AND NOT is_read
	`, toUUID(userID))
	if err != nil {
		return 0, wrapRowError(err, "mark all notifications read")
	}

	return tag.RowsAffected(), nil
}
