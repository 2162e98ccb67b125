package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Post kinds and visibilities.
const (
	PostKindNormal  = "normal"
	PostKindMedical = "medical"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Reaction kinds accepted on posts and comments.
var ReactionKinds = []string{"like", "love", "haha", "wow", "sad", "angry", "care"}

// ValidReactionKind reports whether kind is one of the accepted reaction types.
func ValidReactionKind(kind string) bool {
	for _, k := range ReactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Post is a feed post. Kind is either "normal" (free text) or "medical"
// (structured ask-a-doctor form stored as JSON).
type Post struct {
	ID             int             `db:"id" json:"id"`
	AuthorID       int             `db:"author_id" json:"author_id"`
	Kind           string          `db:"kind" json:"kind"`
	ContentText    sql.NullString  `db:"content_text" json:"-"`
	ContentMedical json.RawMessage `db:"content_medical" json:"content_medical,omitempty"`
	Visibility     string          `db:"visibility" json:"visibility"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// PostPayload is the wire shape of a post with author expanded.
type PostPayload struct {
	ID             int             `json:"id"`
	Author         UserSummary     `json:"author"`
	Kind           string          `json:"kind"`
	Content        string          `json:"content"`
	ContentMedical json.RawMessage `json:"content_medical,omitempty"`
	Visibility     string          `json:"visibility"`
	ReactionCounts map[string]int  `json:"reaction_counts,omitempty"`
	CommentCount   int             `json:"comment_count"`
	ShareCount     int             `json:"share_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Payload expands the post with its author.
func (p Post) Payload(author UserSummary) PostPayload {
	return PostPayload{
		ID:             p.ID,
		Author:         author,
		Kind:           p.Kind,
		Content:        p.ContentText.String,
		ContentMedical: p.ContentMedical,
		Visibility:     p.Visibility,
		CreatedAt:      p.CreatedAt,
	}
}

// PostReaction is one user's reaction on a post, unique per (post, user).
type PostReaction struct {
	PostID    int       `db:"post_id" json:"post_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Comment is a threaded comment on a post.
type Comment struct {
	ID        int           `db:"id" json:"id"`
	PostID    int           `db:"post_id" json:"post_id"`
	AuthorID  int           `db:"author_id" json:"-"`
	ParentID  sql.NullInt64 `db:"parent_id" json:"-"`
	Text      string        `db:"text" json:"text"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// IsReply reports whether the comment is nested under another comment.
func (c Comment) IsReply() bool {
	return c.ParentID.Valid
}

// CommentPayload is the wire shape of a comment with author expanded.
type CommentPayload struct {
	ID        int         `json:"id"`
	PostID    int         `json:"post_id"`
	Author    UserSummary `json:"author"`
	ParentID  *int        `json:"parent_id,omitempty"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Payload expands the comment with its author.
func (c Comment) Payload(author UserSummary) CommentPayload {
	p := CommentPayload{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    author,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ParentID.Valid {
		parent := int(c.ParentID.Int64)
		p.ParentID = &parent
	}
	return p
}

// CommentReaction is one user's reaction on a comment, unique per (comment, user).
type CommentReaction struct {
	CommentID int       `db:"comment_id" json:"comment_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Share records a user sharing a post with an optional message.
type Share struct {
	ID        int            `db:"id" json:"id"`
	PostID    int            `db:"post_id" json:"post_id"`
	UserID    int            `db:"user_id" json:"user_id"`
	Message   sql.NullString `db:"message" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
