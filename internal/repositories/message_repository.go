package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID, senderID int, text, attachment string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListMessages(ctx context.Context, conversationID, limit, offset int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID int) (int, error)
	UnreadCount(ctx context.Context, conversationID, userID int) (int, error)
	LastMessage(ctx context.Context, conversationID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, text, attachment, is_read, created_at`

// CreateMessage stores a direct message. Either text or attachment may be empty
// but not both; the caller validates that.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID, senderID int, text, attachment string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO messages (conversation_id, sender_id, text, attachment)
         VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
         RETURNING `+messageColumns, conversationID, senderID, text, attachment)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns messages for a conversation, oldest first within the page.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM (
            SELECT `+messageColumns+` FROM messages
            WHERE conversation_id=$1
            ORDER BY created_at DESC
            LIMIT $2 OFFSET $3
        ) page ORDER BY created_at ASC`, conversationID, limit, offset)
	return msgs, err
}

// MarkRead marks every unread message not sent by readerID as read and returns
// how many rows changed.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
         WHERE conversation_id=$1 AND is_read = FALSE AND sender_id <> $2`,
		conversationID, readerID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// UnreadCount counts messages addressed to userID that are still unread.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages
         WHERE conversation_id=$1 AND is_read = FALSE AND sender_id <> $2`,
		conversationID, userID)
	return count, err
}

// LastMessage returns the most recent message of a conversation.
func (r *MessageRepo) LastMessage(ctx context.Context, conversationID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages
         WHERE conversation_id=$1 ORDER BY created_at DESC LIMIT 1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
