package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

var ErrPostNotFound = errors.New("post not found")

// PostRepository defines interactions for feed posts.
type PostRepository interface {
	CreatePost(ctx context.Context, authorID int, kind, contentText string, contentMedical json.RawMessage, visibility string) (models.Post, error)
	GetPost(ctx context.Context, postID int) (models.Post, error)
	UpdatePost(ctx context.Context, postID int, contentText string, contentMedical json.RawMessage) (models.Post, error)
	DeletePost(ctx context.Context, postID int) error
	ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error)
}

// PostRepo is a sqlx-backed repository.
type PostRepo struct {
	db *sqlx.DB
}

// NewPostRepo constructs PostRepo.
func NewPostRepo(db *sqlx.DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `id, author_id, kind, content_text, content_medical, visibility, created_at`

// CreatePost stores a feed post. The medical payload is only kept for medical
// posts, free text only for normal ones.
func (r *PostRepo) CreatePost(ctx context.Context, authorID int, kind, contentText string, contentMedical json.RawMessage, visibility string) (models.Post, error) {
	var text sql.NullString
	var medical any
	if kind == "medical" {
		medical = contentMedical
	} else {
		text = sql.NullString{String: contentText, Valid: true}
	}

	var post models.Post
	err := r.db.GetContext(ctx, &post,
		`INSERT INTO posts (author_id, kind, content_text, content_medical, visibility)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+postColumns, authorID, kind, text, medical, visibility)
	return post, err
}

// GetPost retrieves a single post.
func (r *PostRepo) GetPost(ctx context.Context, postID int) (models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id=$1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrPostNotFound
	}
	return post, err
}

// UpdatePost replaces the post content.
func (r *PostRepo) UpdatePost(ctx context.Context, postID int, contentText string, contentMedical json.RawMessage) (models.Post, error) {
	var medical any
	if len(contentMedical) > 0 {
		medical = contentMedical
	}
	var post models.Post
	err := r.db.GetContext(ctx, &post,
		`UPDATE posts SET content_text = NULLIF($2, ''), content_medical = COALESCE($3, content_medical)
         WHERE id=$1
         RETURNING `+postColumns, postID, contentText, medical)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrPostNotFound
	}
	return post, err
}

// DeletePost removes the post; reactions, comments and shares cascade.
func (r *PostRepo) DeletePost(ctx context.Context, postID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ListPosts returns public posts, newest first.
func (r *PostRepo) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.SelectContext(ctx, &posts,
		`SELECT `+postColumns+` FROM posts
         WHERE visibility='public'
         ORDER BY created_at DESC
         LIMIT $1 OFFSET $2`, limit, offset)
	return posts, err
}
