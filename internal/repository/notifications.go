package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timinkAPI/internal/notification"
)

type NotificationRepository struct {
	db DB
}

func NewNotificationRepository(db DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, type, priority, status, title, body, data,
	actor_id, scheduled_for, sent_at, read_at, failed_at, failure_reason, retry_count, created_at, expires_at`

func scanNotification(row interface{ Scan(...any) error }) (*notification.Notification, error) {
	n := &notification.Notification{}
	var data []byte
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Priority, &n.Status, &n.Title, &n.Body, &data,
		&n.ActorID, &n.ScheduledFor, &n.SentAt, &n.ReadAt, &n.FailedAt, &n.FailureReason,
		&n.RetryCount, &n.CreatedAt, &n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (r *NotificationRepository) collect(ctx context.Context, op, query string, args ...any) ([]*notification.Notification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []*notification.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, n)
	}
	return out, wrap(op, rows.Err())
}

func (r *NotificationRepository) Insert(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, priority, status, title, body, data, actor_id, scheduled_for, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.UserID, n.Type, n.Priority, n.Status, n.Title, n.Body, data, n.ActorID, n.ScheduledFor, n.CreatedAt, n.ExpiresAt,
	)
	return wrap("insert notification", err)
}

func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*notification.Notification, error) {
	return r.collect(ctx, "list notifications", `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND ($4 = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset, unreadOnly,
	)
}

func (r *NotificationRepository) count(ctx context.Context, query string, userID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, wrap("count notifications", err)
	}
	return n, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID)
}

func (r *NotificationRepository) CountAll(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $3), status = 'read'
		WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return false, wrap("mark notification read", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET read_at = $2, status = 'read'
		WHERE user_id = $1 AND read_at IS NULL`, userID, at)
	return wrap("mark all notifications read", err)
}

func (r *NotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, wrap("delete notification", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = $2
		WHERE id = $1 AND status <> 'read'`, id, at)
	return wrap("mark notification sent", err)
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int, error) {
	var retries int
	err := r.db.QueryRow(ctx, `
		UPDATE notifications
		SET status = 'failed', failed_at = $3, failure_reason = $2, retry_count = retry_count + 1
		WHERE id = $1
		RETURNING retry_count`, id, reason, at).Scan(&retries)
	if err != nil {
		return 0, notFound("mark notification failed", "notification", err)
	}
	return retries, nil
}

func (r *NotificationRepository) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE notifications SET scheduled_for = $2, status = 'pending' WHERE id = $1`, id, at)
	return wrap("reschedule notification", err)
}

func (r *NotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	return r.collect(ctx, "list due notifications", `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'pending'
		  AND scheduled_for IS NOT NULL
		  AND scheduled_for <= $1
		  AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY scheduled_for ASC
		LIMIT $2`, now, limit)
}

func (r *NotificationRepository) DeleteExpired(ctx context.Context, now, readBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE (expires_at < $1 AND status IN ('sent', 'read', 'failed'))
		   OR (status = 'read' AND read_at < $2)`, now, readBefore)
	if err != nil {
		return 0, wrap("cleanup notifications", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error) {
	p := &notification.NotificationPreferences{UserID: userID}
	var types, tokens []byte
	err := r.db.QueryRow(ctx, `
		SELECT push_enabled, in_app_enabled, enabled_types, device_tokens, created_at, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID,
	).Scan(&p.PushEnabled, &p.InAppEnabled, &types, &tokens, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get notification preferences", err)
	}

	if err := json.Unmarshal(types, &p.EnabledTypes); err != nil {
		return nil, wrap("decode enabled types", err)
	}
	if err := json.Unmarshal(tokens, &p.DeviceTokens); err != nil {
		return nil, wrap("decode device tokens", err)
	}
	return p, nil
}

func (r *NotificationRepository) SavePreferences(ctx context.Context, p *notification.NotificationPreferences) error {
	types, err := json.Marshal(p.EnabledTypes)
	if err != nil {
		return err
	}
	tokens, err := json.Marshal(p.DeviceTokens)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, push_enabled, in_app_enabled, enabled_types, device_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			push_enabled = EXCLUDED.push_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			enabled_types = EXCLUDED.enabled_types,
			device_tokens = EXCLUDED.device_tokens,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.PushEnabled, p.InAppEnabled, types, tokens, p.CreatedAt, p.UpdatedAt,
	)
	return wrap("save notification preferences", err)
}
