package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// PostHandler serves the feed's post endpoints. Every successful mutation is
// broadcast after the row is committed.
type PostHandler struct {
	posts       repositories.PostRepository
	comments    repositories.CommentRepository
	reactions   repositories.ReactionRepository
	shares      repositories.ShareRepository
	users       repositories.UserRepository
	broadcaster *broadcast.Broadcaster
}

// NewPostHandler builds a PostHandler.
func NewPostHandler(
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	reactions repositories.ReactionRepository,
	shares repositories.ShareRepository,
	users repositories.UserRepository,
	broadcaster *broadcast.Broadcaster,
) *PostHandler {
	return &PostHandler{
		posts:       posts,
		comments:    comments,
		reactions:   reactions,
		shares:      shares,
		users:       users,
		broadcaster: broadcaster,
	}
}

// payload assembles a post payload with its current counts.
func (h *PostHandler) payload(ctx context.Context, post models.Post, author models.UserSummary) (models.PostPayload, error) {
	out := post.Payload(author)
	counts, err := h.reactions.PostReactionCounts(ctx, post.ID)
	if err != nil {
		return out, err
	}
	out.ReactionCounts = counts
	if out.CommentCount, err = h.comments.CountForPost(ctx, post.ID); err != nil {
		return out, err
	}
	if out.ShareCount, err = h.shares.CountForPost(ctx, post.ID); err != nil {
		return out, err
	}
	return out, nil
}

// ListPosts returns a page of public posts, newest first.
func (h *PostHandler) ListPosts(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}

	limit, offset := pagination(c)
	posts, err := h.posts.ListPosts(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load posts"})
		return
	}

	authorIDs := make([]int, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
	}
	authors, err := summariesByID(c.Request.Context(), h.users, authorIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}

	payloads := make([]models.PostPayload, 0, len(posts))
	for _, p := range posts {
		payload, err := h.payload(c.Request.Context(), p, authors[p.AuthorID])
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load posts"})
			return
		}
		payloads = append(payloads, payload)
	}

	c.JSON(http.StatusOK, gin.H{"posts": payloads})
}

// GetPost returns a single post with its counts.
func (h *PostHandler) GetPost(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
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

	author, err := h.users.GetUser(c.Request.Context(), post.AuthorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user info"})
		return
	}
	payload, err := h.payload(c.Request.Context(), post, author.Summary())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		return
	}

	c.JSON(http.StatusOK, payload)
}

// CreatePost publishes a new post to the feed and notifies the author's
// friends.
func (h *PostHandler) CreatePost(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		Kind           string          `json:"kind"`
		ContentText    string          `json:"content_text"`
		ContentMedical json.RawMessage `json:"content_medical"`
		Visibility     string          `json:"visibility"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = models.PostKindNormal
	}
	if req.Kind != models.PostKindNormal && req.Kind != models.PostKindMedical {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown post kind"})
		return
	}
	if req.Kind == models.PostKindNormal && req.ContentText == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_text required"})
		return
	}
	if req.Kind == models.PostKindMedical && len(req.ContentMedical) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_medical required"})
		return
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPublic
	}

	post, err := h.posts.CreatePost(c.Request.Context(), id.User.ID, req.Kind, req.ContentText, req.ContentMedical, req.Visibility)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create post"})
		return
	}

	payload := post.Payload(id.Summary())
	h.broadcaster.NewPost(c.Request.Context(), id.User, payload)

	c.JSON(http.StatusCreated, payload)
}

// UpdatePost edits one of the user's own posts.
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
		return
	}

	var req struct {
		ContentText    string          `json:"content_text"`
		ContentMedical json.RawMessage `json:"content_medical"`
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
	if err := auth.RequireOwner(post.AuthorID, id.User.ID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot edit another user's post"})
		return
	}

	updated, err := h.posts.UpdatePost(c.Request.Context(), post.ID, req.ContentText, req.ContentMedical)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update post"})
		return
	}

	payload, err := h.payload(c.Request.Context(), updated, id.Summary())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update post"})
		return
	}
	h.broadcaster.UpdatedPost(c.Request.Context(), payload)

	c.JSON(http.StatusOK, payload)
}

// DeletePost removes one of the user's own posts.
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
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
	if err := auth.RequireOwner(post.AuthorID, id.User.ID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete another user's post"})
		return
	}

	if err := h.posts.DeletePost(c.Request.Context(), post.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete post"})
		return
	}
	h.broadcaster.DeletedPost(c.Request.Context(), post.ID)

	c.JSON(http.StatusOK, gin.H{"deleted": post.ID})
}

// ReactToPost sets the user's reaction on a post.
func (h *PostHandler) ReactToPost(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
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

	post, err := h.posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		}
		return
	}

	if _, err := h.reactions.UpsertPostReaction(c.Request.Context(), post.ID, id.User.ID, req.ReactionType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not react to post"})
		return
	}
	h.broadcaster.PostReaction(c.Request.Context(), post, id.User, &req.ReactionType)

	counts, err := h.reactions.PostReactionCounts(c.Request.Context(), post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction_counts": counts})
}

// UnreactToPost removes the user's reaction on a post.
func (h *PostHandler) UnreactToPost(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
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

	removed, err := h.reactions.RemovePostReaction(c.Request.Context(), post.ID, id.User.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove reaction"})
		return
	}
	if removed {
		h.broadcaster.PostReaction(c.Request.Context(), post, id.User, nil)
	}

	counts, err := h.reactions.PostReactionCounts(c.Request.Context(), post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaction_counts": counts})
}

// SharePost records a share of a post and notifies its author.
func (h *PostHandler) SharePost(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	postID, ok := intParam(c, "post_id")
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
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

	share, err := h.shares.CreateShare(c.Request.Context(), post.ID, id.User.ID, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not share post"})
		return
	}
	h.broadcaster.SharedPost(c.Request.Context(), post, id.User, req.Message)

	c.JSON(http.StatusCreated, gin.H{"share_id": share.ID})
}
