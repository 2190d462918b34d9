package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

// NotificationRepository provides persistence for in-app notifications and
// the denormalized per-timetable delivery log.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, message, entity_type, entity_id, is_read, read_at, created_at)
VALUES (:id, :user_id, :type, :title, :message, :entity_type, :entity_id, :is_read, :read_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// BulkCreateTimetableLog inserts the denormalized timetable notification
// batch in one transaction.
func (r *NotificationRepository) BulkCreateTimetableLog(ctx context.Context, rows []models.ExamTimetableNotification) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		const query = `INSERT INTO exam_timetable_notifications (id, timetable_id, user_id, event_type, sent_via_app, sent_via_email, created_at)
VALUES (:id, :timetable_id, :user_id, :event_type, :sent_via_app, :sent_via_email, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, rows[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert timetable notification: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit timetable notifications: %w", err)
	}
	return nil
}

// ListForUser returns the newest notifications for a user, bounded by limit.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, user_id, type, title, message, entity_type, entity_id, is_read, read_at, created_at
FROM notifications WHERE user_id = $1
ORDER BY created_at DESC LIMIT $2`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags a notification as read. Returns false when the row does
// not exist.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, readAt, id)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}
