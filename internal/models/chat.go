package models

import (
	"database/sql"
	"time"
)

// Conversation is a private two-party conversation.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OtherParticipant returns the participant that is not userID, or false when
// userID is not part of the conversation.
func (c Conversation) OtherParticipant(userID int) (int, bool) {
	switch userID {
	case c.User1ID:
		return c.User2ID, true
	case c.User2ID:
		return c.User1ID, true
	default:
		return 0, false
	}
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Message is a direct message inside a conversation.
type Message struct {
	ID             int            `db:"id" json:"id"`
	ConversationID int            `db:"conversation_id" json:"conversation"`
	SenderID       int            `db:"sender_id" json:"-"`
	Text           sql.NullString `db:"text" json:"-"`
	Attachment     sql.NullString `db:"attachment" json:"-"`
	IsRead         bool           `db:"is_read" json:"is_read"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// MessagePayload is the wire shape of a message, with the sender expanded.
type MessagePayload struct {
	ID           int         `json:"id"`
	Conversation int         `json:"conversation"`
	Sender       UserSummary `json:"sender"`
	Text         string      `json:"text"`
	Attachment   *string     `json:"attachment,omitempty"`
	IsRead       bool        `json:"is_read"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Payload expands the message with its sender for delivery.
func (m Message) Payload(sender UserSummary) MessagePayload {
	p := MessagePayload{
		ID:           m.ID,
		Conversation: m.ConversationID,
		Sender:       sender,
		Text:         m.Text.String,
		IsRead:       m.IsRead,
		CreatedAt:    m.CreatedAt,
	}
	if m.Attachment.Valid {
		p.Attachment = &m.Attachment.String
	}
	return p
}

// ConversationSummary is the API view of a conversation for one user.
type ConversationSummary struct {
	ID          int             `json:"id"`
	Other       UserSummary     `json:"other_user"`
	LastMessage *MessagePayload `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
