// Package proto defines the websocket wire protocol: a closed set of typed
// frames multiplexed over each connection by a top-level type discriminant.
package proto

import (
	"encoding/json"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

// Inbound frame types.
const (
	TypePing          = "ping"
	TypeSendMessage   = "send_message"
	TypeTyping        = "typing"
	TypeMarkRead      = "mark_read"
	TypePostReact     = "post_react"
	TypeDeleteComment = "delete_comment"
)

// Outbound frame types.
const (
	TypeConnectionEstablished = "connection_established"
	TypePong                  = "pong"
	TypeError                 = "error"
	TypeNewMessage            = "new_message"
	TypeMessageSent           = "message_sent"
	TypeUserTyping            = "user_typing"
	TypeMessagesRead          = "messages_read"
	TypeFeedUpdate            = "feed_update"
	TypeNotification          = "notification"
)

// Feed event discriminants nested inside feed_update frames.
const (
	FeedNewPost        = "new_post"
	FeedUpdatePost     = "update_post"
	FeedDeletePost     = "delete_post"
	FeedPostReact      = "post_react"
	FeedPostUnreact    = "post_unreact"
	FeedSharePost      = "share_post"
	FeedNewComment     = "new_comment"
	FeedUpdateComment  = "update_comment"
	FeedDeleteComment  = "delete_comment"
	FeedCommentReact   = "comment_react"
	FeedCommentUnreact = "comment_unreact"
)

// Envelope carries just the discriminant; the full frame is re-decoded into
// the payload type selected by it.
type Envelope struct {
	Type string `json:"type"`
}

// PingFrame echoes an opaque client timestamp.
type PingFrame struct {
	Timestamp json.RawMessage `json:"timestamp"`
}

// SendMessageFrame persists and delivers a direct message.
type SendMessageFrame struct {
	ConversationID int    `json:"conversation_id"`
	Text           string `json:"text"`
	Attachment     string `json:"attachment"`
}

// TypingFrame signals a typing indicator in a conversation or under a post.
type TypingFrame struct {
	ConversationID int   `json:"conversation_id"`
	PostID         int   `json:"post_id"`
	IsTyping       *bool `json:"is_typing"`
}

// Typing defaults to true when the field is absent.
func (f TypingFrame) Typing() bool {
	if f.IsTyping == nil {
		return true
	}
	return *f.IsTyping
}

// MarkReadFrame marks the unread messages of a conversation as read.
type MarkReadFrame struct {
	ConversationID int `json:"conversation_id"`
}

// PostReactFrame upserts (or, with a null reaction type, removes) the
// sender's reaction on a post.
type PostReactFrame struct {
	PostID       int     `json:"post_id"`
	ReactionType *string `json:"reaction_type"`
}

// DeleteCommentFrame deletes one of the sender's own comments.
type DeleteCommentFrame struct {
	CommentID int `json:"comment_id"`
}

// ConnectionEstablished is sent once to a connection after admission.
type ConnectionEstablished struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	UserID  int    `json:"user_id"`
}

// Pong answers a ping with the same opaque timestamp.
type Pong struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ErrorFrame is returned only to the connection that issued the failing
// request; it is never broadcast.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageFrame wraps a direct message as new_message (to the recipient) or
// message_sent (echo to the sender).
type MessageFrame struct {
	Type    string                `json:"type"`
	Message models.MessagePayload `json:"message"`
}

// UserTyping relays a typing indicator.
type UserTyping struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id,omitempty"`
	PostID         int    `json:"post_id,omitempty"`
	UserID         int    `json:"user_id"`
	UserName       string `json:"user_name"`
	IsTyping       bool   `json:"is_typing"`
}

// MessagesRead notifies the other participant that the sender has read the
// conversation.
type MessagesRead struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id"`
	UserID         int    `json:"user_id"`
}

// FeedEvent is the nested payload of a feed_update frame. Fields are filled
// per discriminant; counts are recomputed at broadcast time.
type FeedEvent struct {
	Event          string                 `json:"event"`
	PostID         int                    `json:"post_id,omitempty"`
	Post           *models.PostPayload    `json:"post,omitempty"`
	CommentID      int                    `json:"comment_id,omitempty"`
	Comment        *models.CommentPayload `json:"comment,omitempty"`
	IsReply        bool                   `json:"is_reply,omitempty"`
	UserID         int                    `json:"user_id,omitempty"`
	UserName       string                 `json:"user_name,omitempty"`
	ReactionType   *string                `json:"reaction_type,omitempty"`
	ReactionCounts map[string]int         `json:"reaction_counts,omitempty"`
	SharesCount    int                    `json:"shares_count,omitempty"`
	Message        string                 `json:"message,omitempty"`
}

// FeedUpdate is the shared-group envelope for feed events.
type FeedUpdate struct {
	Type string    `json:"type"`
	Data FeedEvent `json:"data"`
}

// Notification is the personal-group envelope for notifications.
type Notification struct {
	Type string                     `json:"type"`
	Data models.NotificationPayload `json:"data"`
}

// Encode marshals an outbound frame once; broadcast paths reuse the bytes for
// every subscriber.
func Encode(frame any) ([]byte, error) {
	return json.Marshal(frame)
}

// NewFeedUpdate builds a feed_update frame.
func NewFeedUpdate(event FeedEvent) FeedUpdate {
	return FeedUpdate{Type: TypeFeedUpdate, Data: event}
}

// NewNotification builds a notification frame.
func NewNotification(payload models.NotificationPayload) Notification {
	return Notification{Type: TypeNotification, Data: payload}
}

// NewErrorFrame builds an error frame for the originating connection.
func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}
