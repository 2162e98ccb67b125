package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository defines interactions for two-party conversations.
type ConversationRepository interface {
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	FindOrCreate(ctx context.Context, userID, otherID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	Touch(ctx context.Context, conversationID int) error
}

// ConversationRepo is a sqlx-backed repository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user1_id, user2_id, created_at, updated_at`

// GetConversation retrieves a single conversation.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// FindOrCreate returns the conversation between the two users, creating it when
// missing. Participants are stored with the lower id first so the unique
// constraint covers both orderings.
func (r *ConversationRepo) FindOrCreate(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	first, second := userID, otherID
	if second < first {
		first, second = second, first
	}

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET updated_at = conversations.updated_at
         RETURNING `+conversationColumns, first, second)
	return conv, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT `+conversationColumns+` FROM conversations
         WHERE user1_id=$1 OR user2_id=$1
         ORDER BY updated_at DESC`, userID)
	return convs, err
}

// Touch bumps updated_at so the conversation sorts to the top of the list.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id=$1`, conversationID)
	return err
}
