package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// ChatHandler serves direct-message conversation endpoints.
type ChatHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	broadcaster   *broadcast.Broadcaster
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	broadcaster *broadcast.Broadcaster,
) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		broadcaster:   broadcaster,
	}
}

// ListConversations returns the user's conversations with the other
// participant, the latest message and the unread count.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	convs, err := h.conversations.ListForUser(c.Request.Context(), id.User.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	otherIDs := make([]int, 0, len(convs))
	for _, conv := range convs {
		if otherID, ok := conv.OtherParticipant(id.User.ID); ok {
			otherIDs = append(otherIDs, otherID)
		}
	}
	summaries, err := summariesByID(c.Request.Context(), h.users, otherIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	out := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		otherID, ok := conv.OtherParticipant(id.User.ID)
		if !ok {
			continue
		}
		summary := models.ConversationSummary{
			ID:        conv.ID,
			Other:     summaries[otherID],
			UpdatedAt: conv.UpdatedAt,
		}
		if last, err := h.messages.LastMessage(c.Request.Context(), conv.ID); err == nil {
			payload := last.Payload(summaries[last.SenderID])
			if last.SenderID == id.User.ID {
				payload = last.Payload(id.Summary())
			}
			summary.LastMessage = &payload
		} else if !errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		unread, err := h.messages.UnreadCount(c.Request.Context(), conv.ID, id.User.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		summary.UnreadCount = unread
		out = append(out, summary)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// StartConversation returns the conversation with the given user, creating it
// if the two users are friends and none exists yet.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == id.User.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	friends, err := h.users.AreFriends(c.Request.Context(), id.User.ID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate friendship"})
		return
	}
	if !friends {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are not friends"})
		return
	}

	conv, err := h.conversations.FindOrCreate(c.Request.Context(), id.User.ID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// ListMessages returns a page of a conversation's messages, oldest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	conversationID, ok := intParam(c, "conversation_id")
	if !ok {
		return
	}

	conv, err := h.conversations.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		}
		return
	}
	if !conv.HasParticipant(id.User.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return
	}

	limit, offset := pagination(c)
	msgs, err := h.messages.ListMessages(c.Request.Context(), conv.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	summaries, err := summariesByID(c.Request.Context(), h.users, senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	payloads := make([]models.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		payloads = append(payloads, m.Payload(summaries[m.SenderID]))
	}

	c.JSON(http.StatusOK, gin.H{"messages": payloads})
}

// MarkRead marks the conversation's unread messages as read and notifies the
// other participant when anything changed.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	conversationID, ok := intParam(c, "conversation_id")
	if !ok {
		return
	}

	conv, err := h.conversations.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		}
		return
	}
	otherID, ok := conv.OtherParticipant(id.User.ID)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return
	}

	marked, err := h.messages.MarkRead(c.Request.Context(), conv.ID, id.User.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark messages read"})
		return
	}
	if marked > 0 {
		h.broadcaster.MessagesRead(c.Request.Context(), otherID, conv.ID, id.User.ID)
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
