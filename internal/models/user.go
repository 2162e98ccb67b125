package models

import (
	"database/sql"
	"time"
)

// User is an account row. Identity storage is owned by the accounts schema;
// the realtime layer only reads it.
type User struct {
	ID        int            `db:"id" json:"id"`
	Username  string         `db:"username" json:"username"`
	Email     string         `db:"email" json:"email"`
	FirstName string         `db:"first_name" json:"first_name"`
	LastName  string         `db:"last_name" json:"last_name"`
	Avatar    sql.NullString `db:"avatar" json:"-"`
	Role      string         `db:"role" json:"role"`
	IsActive  bool           `db:"is_active" json:"is_active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// FullName returns first+last name, falling back to the username.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// Summary converts the row into the shape embedded in realtime payloads.
func (u User) Summary() UserSummary {
	s := UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Name:      u.FullName(),
	}
	if u.Avatar.Valid {
		s.Avatar = &u.Avatar.String
	}
	return s
}

// UserSummary is the sender/author block carried inside events.
type UserSummary struct {
	ID        int     `json:"id"`
	Username  string  `json:"username"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Avatar    *string `json:"avatar"`
	Name      string  `json:"name"`
}
