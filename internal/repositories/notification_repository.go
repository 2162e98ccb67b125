package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

// NotificationRepository defines interactions for personal notifications.
type NotificationRepository interface {
	Create(ctx context.Context, recipientID, actorID int, kind string, postID, commentID *int) (models.Notification, error)
	ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int) error
	MarkAllRead(ctx context.Context, userID int) (int, error)
}

// NotificationRepo is a sqlx-backed repository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, recipient_id, actor_id, kind, post_id, comment_id, is_read, created_at`

// Create stores a notification for one recipient.
func (r *NotificationRepo) Create(ctx context.Context, recipientID, actorID int, kind string, postID, commentID *int) (models.Notification, error) {
	var post, comment sql.NullInt64
	if postID != nil {
		post = sql.NullInt64{Int64: int64(*postID), Valid: true}
	}
	if commentID != nil {
		comment = sql.NullInt64{Int64: int64(*commentID), Valid: true}
	}

	var n models.Notification
	err := r.db.GetContext(ctx, &n,
		`INSERT INTO notifications (recipient_id, actor_id, kind, post_id, comment_id)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+notificationColumns, recipientID, actorID, kind, post, comment)
	return n, err
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+notificationColumns+` FROM notifications
         WHERE recipient_id=$1
         ORDER BY created_at DESC
         LIMIT $2 OFFSET $3`, userID, limit, offset)
	return list, err
}

// MarkRead flags one notification as read, scoped to its recipient.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id=$1 AND recipient_id=$2`,
		notificationID, userID)
	return err
}

// MarkAllRead flags every unread notification of the user as read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id=$1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}
