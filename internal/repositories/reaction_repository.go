package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ReactionRepository defines interactions for post and comment reactions.
// Counts are always computed from the persisted rows so broadcast payloads
// reflect the post-write state.
type ReactionRepository interface {
	UpsertPostReaction(ctx context.Context, postID, userID int, kind string) (created bool, err error)
	RemovePostReaction(ctx context.Context, postID, userID int) (removed bool, err error)
	PostReactionCounts(ctx context.Context, postID int) (map[string]int, error)
	UpsertCommentReaction(ctx context.Context, commentID, userID int, kind string) (created bool, err error)
	RemoveCommentReaction(ctx context.Context, commentID, userID int) (removed bool, err error)
	CommentReactionCounts(ctx context.Context, commentID int) (map[string]int, error)
}

// ReactionRepo is a sqlx-backed repository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// UpsertPostReaction adds or replaces the user's reaction on a post. The
// returned flag distinguishes a fresh reaction from a changed one.
func (r *ReactionRepo) UpsertPostReaction(ctx context.Context, postID, userID int, kind string) (bool, error) {
	var created bool
	err := r.db.GetContext(ctx, &created,
		`INSERT INTO post_reactions (post_id, user_id, type) VALUES ($1, $2, $3)
         ON CONFLICT (post_id, user_id) DO UPDATE SET type=$3, created_at=NOW()
         RETURNING (xmax = 0)`, postID, userID, kind)
	return created, err
}

// RemovePostReaction deletes the user's reaction on a post if present.
func (r *ReactionRepo) RemovePostReaction(ctx context.Context, postID, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM post_reactions WHERE post_id=$1 AND user_id=$2`, postID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// PostReactionCounts aggregates reactions on a post grouped by kind.
func (r *ReactionRepo) PostReactionCounts(ctx context.Context, postID int) (map[string]int, error) {
	return r.countsQuery(ctx,
		`SELECT type, COUNT(*) AS count FROM post_reactions WHERE post_id=$1 GROUP BY type`, postID)
}

// UpsertCommentReaction adds or replaces the user's reaction on a comment.
func (r *ReactionRepo) UpsertCommentReaction(ctx context.Context, commentID, userID int, kind string) (bool, error) {
	var created bool
	err := r.db.GetContext(ctx, &created,
		`INSERT INTO comment_reactions (comment_id, user_id, type) VALUES ($1, $2, $3)
         ON CONFLICT (comment_id, user_id) DO UPDATE SET type=$3, created_at=NOW()
         RETURNING (xmax = 0)`, commentID, userID, kind)
	return created, err
}

// RemoveCommentReaction deletes the user's reaction on a comment if present.
func (r *ReactionRepo) RemoveCommentReaction(ctx context.Context, commentID, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM comment_reactions WHERE comment_id=$1 AND user_id=$2`, commentID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// CommentReactionCounts aggregates reactions on a comment grouped by kind.
func (r *ReactionRepo) CommentReactionCounts(ctx context.Context, commentID int) (map[string]int, error) {
	return r.countsQuery(ctx,
		`SELECT type, COUNT(*) AS count FROM comment_reactions WHERE comment_id=$1 GROUP BY type`, commentID)
}

func (r *ReactionRepo) countsQuery(ctx context.Context, query string, id int) (map[string]int, error) {
	var rows []struct {
		Type  string `db:"type"`
		Count int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
