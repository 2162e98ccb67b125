package models

import "time"

// UserStatus is the persisted presence row, one per user.
type UserStatus struct {
	UserID   int       `db:"user_id" json:"user_id"`
	IsOnline bool      `db:"is_online" json:"is_online"`
	LastSeen time.Time `db:"last_seen" json:"last_seen"`
}
