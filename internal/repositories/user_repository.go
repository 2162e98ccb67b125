package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository looks up accounts and friendship relations.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	BulkUsers(ctx context.Context, ids []int) ([]models.User, error)
	AreFriends(ctx context.Context, userID, otherID int) (bool, error)
	ListFriendIDs(ctx context.Context, userID int) ([]int, error)
}

// UserRepo is a sqlx-backed repository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, username, email, first_name, last_name, avatar, role, is_active, created_at`

// GetUser retrieves a single account row.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkUsers loads several accounts at once for payload expansion.
func (r *UserRepo) BulkUsers(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// AreFriends reports whether a friendship row exists in either direction.
func (r *UserRepo) AreFriends(ctx context.Context, userID, otherID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(
            SELECT 1 FROM friendships
            WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)
        )`, userID, otherID)
	return exists, err
}

// ListFriendIDs returns the ids of every friend of userID.
func (r *UserRepo) ListFriendIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT CASE WHEN user_id=$1 THEN friend_id ELSE user_id END
         FROM friendships
         WHERE user_id=$1 OR friend_id=$1`, userID)
	return ids, err
}
