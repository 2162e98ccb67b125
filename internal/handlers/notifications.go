package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// NotificationHandler serves the user's notification inbox.
type NotificationHandler struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationRepository, users repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, users: users}
}

// ListNotifications returns a page of the user's notifications, newest first.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	notifications, err := h.notifications.ListForUser(c.Request.Context(), id.User.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}

	actorIDs := make([]int, 0, len(notifications))
	for _, n := range notifications {
		actorIDs = append(actorIDs, n.ActorID)
	}
	actors, err := summariesByID(c.Request.Context(), h.users, actorIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	payloads := make([]models.NotificationPayload, 0, len(notifications))
	for _, n := range notifications {
		payloads = append(payloads, n.Payload(actors[n.ActorID]))
	}

	c.JSON(http.StatusOK, gin.H{"notifications": payloads})
}

// MarkNotificationRead marks one of the user's notifications as read.
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	notificationID, ok := intParam(c, "notification_id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), notificationID, id.User.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notification read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": notificationID})
}

// MarkAllNotificationsRead marks every unread notification of the user as
// read.
func (h *NotificationHandler) MarkAllNotificationsRead(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	marked, err := h.notifications.MarkAllRead(c.Request.Context(), id.User.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
