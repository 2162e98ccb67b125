package models

import (
	"database/sql"
	"time"
)

// Notification kinds produced by the fan-out layer.
const (
	NotificationNewPost      = "new_post"
	NotificationPostReact    = "post_react"
	NotificationNewComment   = "new_comment"
	NotificationCommentReact = "comment_react"
	NotificationSharePost    = "share_post"
)

// Notification is a persisted personal notification for one recipient.
type Notification struct {
	ID          int           `db:"id" json:"id"`
	RecipientID int           `db:"recipient_id" json:"recipient_id"`
	ActorID     int           `db:"actor_id" json:"-"`
	Kind        string        `db:"kind" json:"kind"`
	PostID      sql.NullInt64 `db:"post_id" json:"-"`
	CommentID   sql.NullInt64 `db:"comment_id" json:"-"`
	IsRead      bool          `db:"is_read" json:"is_read"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// NotificationPayload is the wire shape of a notification with the actor expanded.
type NotificationPayload struct {
	ID        int         `json:"id"`
	Sender    UserSummary `json:"sender"`
	Kind      string      `json:"notification_type"`
	PostID    *int        `json:"post_id,omitempty"`
	CommentID *int        `json:"comment_id,omitempty"`
	IsRead    bool        `json:"is_read"`
	CreatedAt time.Time   `json:"created_at"`
}

// Payload expands the notification with its actor.
func (n Notification) Payload(actor UserSummary) NotificationPayload {
	p := NotificationPayload{
		ID:        n.ID,
		Sender:    actor,
		Kind:      n.Kind,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.PostID.Valid {
		id := int(n.PostID.Int64)
		p.PostID = &id
	}
	if n.CommentID.Valid {
		id := int(n.CommentID.Int64)
		p.CommentID = &id
	}
	return p
}
