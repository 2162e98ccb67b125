package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// CommentHandler serves comment endpoints under posts.
type CommentHandler struct {
	posts       repositories.PostRepository
	comments    repositories.CommentRepository
	reactions   repositories.ReactionRepository
	users       repositories.UserRepository
	broadcaster *broadcast.Broadcaster
}

// NewCommentHandler builds a CommentHandler.
func NewCommentHandler(
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	reactions repositories.ReactionRepository,
	users repositories.UserRepository,
	broadcaster *broadcast.Broadcaster,
) *CommentHandler {
	return &CommentHandler{
		posts:       posts,
		comments:    comments,
		reactions:   reactions,
		users:       users,
		broadcaster: broadcaster,
	}
}

// ListComments returns a post's comments, oldest first.
func (h *CommentHandler) ListComments(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
		return
	}

	if _, err := h.posts.GetPost(c.Request.Context(), postID); err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		}
		return
	}

	comments, err := h.comments.ListByPost(c.Request.Context(), postID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comments"})
		return
	}

	authorIDs := make([]int, 0, len(comments))
	for _, cm := range comments {
		authorIDs = append(authorIDs, cm.AuthorID)
	}
	authors, err := summariesByID(c.Request.Context(), h.users, authorIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	payloads := make([]models.CommentPayload, 0, len(comments))
	for _, cm := range comments {
		payloads = append(payloads, cm.Payload(authors[cm.AuthorID]))
	}

	c.JSON(http.StatusOK, gin.H{"comments": payloads})
}

// CreateComment adds a comment (or reply) to a post and notifies the post's
// author, or the parent comment's author for replies.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
		return
	}

	var req struct {
		Text     string `json:"text" binding:"required"`
		ParentID *int   `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		}
		return
	}

	parentAuthorID := 0
	if req.ParentID != nil {
		parent, err := h.comments.GetComment(c.Request.Context(), *req.ParentID)
		if err != nil {
			if errors.Is(err, repositories.ErrCommentNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "parent comment not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
			}
			return
		}
		if parent.PostID != post.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent comment belongs to another post"})
			return
		}
		parentAuthorID = parent.AuthorID
	}

	comment, err := h.comments.CreateComment(c.Request.Context(), post.ID, id.User.ID, req.Text, req.ParentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create comment"})
		return
	}

	payload := comment.Payload(id.Summary())
	h.broadcaster.NewComment(c.Request.Context(), post, id.User, payload, parentAuthorID)

	c.JSON(http.StatusCreated, payload)
}

// UpdateComment edits one of the user's own comments.
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	commentID, ok := intParam(c, "comment_id")
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.comments.GetComment(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		}
		return
	}
	if err := auth.RequireOwner(comment.AuthorID, id.User.ID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot edit another user's comment"})
		return
	}

	updated, err := h.comments.UpdateComment(c.Request.Context(), comment.ID, req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update comment"})
		return
	}

	payload := updated.Payload(id.Summary())
	h.broadcaster.UpdatedComment(c.Request.Context(), comment.PostID, payload)

	c.JSON(http.StatusOK, payload)
}

// DeleteComment removes one of the user's own comments.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	commentID, ok := intParam(c, "comment_id")
	if !ok {
		return
	}

	comment, err := h.comments.GetComment(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		}
		return
	}
	if err := auth.RequireOwner(comment.AuthorID, id.User.ID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete another user's comment"})
		return
	}

	if err := h.comments.DeleteComment(c.Request.Context(), comment.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete comment"})
		return
	}
	h.broadcaster.DeletedComment(c.Request.Context(), comment.PostID, comment.ID, id.User.ID)

	c.JSON(http.StatusOK, gin.H{"deleted": comment.ID})
}

// ReactToComment sets the user's reaction on a comment.
func (h *CommentHandler) ReactToComment(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	commentID, ok := intParam(c, "comment_id")
	if !ok {
		return
	}

	var req struct {
		ReactionType string `json:"reaction_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidReactionKind(req.ReactionType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown reaction type"})
		return
	}

	comment, err := h.comments.GetComment(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		}
		return
	}

	if _, err := h.reactions.UpsertCommentReaction(c.Request.Context(), comment.ID, id.User.ID, req.ReactionType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not react to comment"})
		return
	}
	h.broadcaster.CommentReaction(c.Request.Context(), comment, id.User, &req.ReactionType)

	counts, err := h.reactions.CommentReactionCounts(c.Request.Context(), comment.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction_counts": counts})
}

// UnreactToComment removes the user's reaction on a comment.
func (h *CommentHandler) UnreactToComment(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	commentID, ok := intParam(c, "comment_id")
	if !ok {
		return
	}

	comment, err := h.comments.GetComment(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		}
		return
	}

	removed, err := h.reactions.RemoveCommentReaction(c.Request.Context(), comment.ID, id.User.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove reaction"})
		return
	}
	if removed {
		h.broadcaster.CommentReaction(c.Request.Context(), comment, id.User, nil)
	}

	counts, err := h.reactions.CommentReactionCounts(c.Request.Context(), comment.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction_counts": counts})
}
