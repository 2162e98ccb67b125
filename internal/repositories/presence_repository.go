package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/vietTNT/DoveRx-backend/internal/models"
)

// PresenceRepository persists online/offline transitions for profile queries.
type PresenceRepository interface {
	SetOnline(ctx context.Context, userID int, online bool) error
	GetStatus(ctx context.Context, userID int) (models.UserStatus, error)
}

// PresenceRepo is a sqlx-backed repository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// SetOnline upserts the presence row for a user.
func (r *PresenceRepo) SetOnline(ctx context.Context, userID int, online bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_status (user_id, is_online, last_seen)
         VALUES ($1, $2, NOW())
         ON CONFLICT (user_id) DO UPDATE SET is_online=$2, last_seen=NOW()`,
		userID, online)
	return err
}

// GetStatus returns the persisted presence of a user. Users that never
// connected read as offline.
func (r *PresenceRepo) GetStatus(ctx context.Context, userID int) (models.UserStatus, error) {
	var status models.UserStatus
	err := r.db.GetContext(ctx, &status,
		`SELECT user_id, is_online, last_seen FROM user_status WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserStatus{UserID: userID, IsOnline: false}, nil
	}
	return status, err
}
