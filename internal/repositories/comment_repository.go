package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

var ErrCommentNotFound = errors.New("comment not found")

// CommentRepository defines interactions for threaded post comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, postID, authorID int, text string, parentID *int) (models.Comment, error)
	GetComment(ctx context.Context, commentID int) (models.Comment, error)
	UpdateComment(ctx context.Context, commentID int, text string) (models.Comment, error)
	DeleteComment(ctx context.Context, commentID int) error
	ListByPost(ctx context.Context, postID int) ([]models.Comment, error)
	CountForPost(ctx context.Context, postID int) (int, error)
}

// CommentRepo is a sqlx-backed repository.
type CommentRepo struct {
	db *sqlx.DB
}

// NewCommentRepo constructs CommentRepo.
func NewCommentRepo(db *sqlx.DB) *CommentRepo {
	return &CommentRepo{db: db}
}

const commentColumns = `id, post_id, author_id, parent_id, text, created_at, updated_at`

// CreateComment stores a comment, optionally as a reply to parentID.
func (r *CommentRepo) CreateComment(ctx context.Context, postID, authorID int, text string, parentID *int) (models.Comment, error) {
	var parent sql.NullInt64
	if parentID != nil {
		parent = sql.NullInt64{Int64: int64(*parentID), Valid: true}
	}
	var comment models.Comment
	err := r.db.GetContext(ctx, &comment,
		`INSERT INTO comments (post_id, author_id, parent_id, text)
         VALUES ($1, $2, $3, $4)
         RETURNING `+commentColumns, postID, authorID, parent, text)
	return comment, err
}

// GetComment retrieves a single comment.
func (r *CommentRepo) GetComment(ctx context.Context, commentID int) (models.Comment, error) {
	var comment models.Comment
	err := r.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, ErrCommentNotFound
	}
	return comment, err
}

// UpdateComment replaces the comment text.
func (r *CommentRepo) UpdateComment(ctx context.Context, commentID int, text string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.GetContext(ctx, &comment,
		`UPDATE comments SET text=$2, updated_at=NOW() WHERE id=$1
         RETURNING `+commentColumns, commentID, text)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, ErrCommentNotFound
	}
	return comment, err
}

// DeleteComment removes the comment; replies and reactions cascade.
func (r *CommentRepo) DeleteComment(ctx context.Context, commentID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// ListByPost returns every comment of a post, oldest first. The client builds
// the reply tree from parent_id.
func (r *CommentRepo) ListByPost(ctx context.Context, postID int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.SelectContext(ctx, &comments,
		`SELECT `+commentColumns+` FROM comments WHERE post_id=$1 ORDER BY created_at ASC`, postID)
	return comments, err
}

// CountForPost counts the comments of a post.
func (r *CommentRepo) CountForPost(ctx context.Context, postID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM comments WHERE post_id=$1`, postID)
	return count, err
}
