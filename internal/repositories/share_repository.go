package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

// ShareRepository defines interactions for post shares.
type ShareRepository interface {
	CreateShare(ctx context.Context, postID, userID int, message string) (models.Share, error)
	CountForPost(ctx context.Context, postID int) (int, error)
}

// ShareRepo is a sqlx-backed repository.
type ShareRepo struct {
	db *sqlx.DB
}

// NewShareRepo constructs ShareRepo.
func NewShareRepo(db *sqlx.DB) *ShareRepo {
	return &ShareRepo{db: db}
}

// CreateShare records a share of a post.
func (r *ShareRepo) CreateShare(ctx context.Context, postID, userID int, message string) (models.Share, error) {
	var share models.Share
	err := r.db.GetContext(ctx, &share,
		`INSERT INTO shares (post_id, user_id, message)
         VALUES ($1, $2, NULLIF($3, ''))
         RETURNING id, post_id, user_id, message, created_at`, postID, userID, message)
	return share, err
}

// CountForPost counts how many times a post has been shared.
func (r *ShareRepo) CountForPost(ctx context.Context, postID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM shares WHERE post_id=$1`, postID)
	return count, err
}
