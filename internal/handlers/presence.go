package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/presence"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// PresenceHandler exposes another user's online status.
type PresenceHandler struct {
	tracker *presence.Tracker
	repo    repositories.PresenceRepository
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(tracker *presence.Tracker, repo repositories.PresenceRepository) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, repo: repo}
}

// GetStatus reports whether a user is online and when they were last seen.
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	userID, ok := intParam(c, "user_id")
	if !ok {
		return
	}

	status, err := h.repo.GetStatus(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"is_online": h.tracker.IsOnline(c.Request.Context(), userID),
		"last_seen": status.LastSeen,
	})
}
