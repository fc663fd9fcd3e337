// Package domain contains the diary's entities, the ports its adapters
// implement and the errors shared across layers.
package domain

import (
	"context"
	"time"
)

// User is the diary's owner account. The service holds exactly one.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is a cookie session bound to the browser that opened it.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session has lapsed at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserRepository defines the port for user persistence operations. Lookups
// return (nil, nil) when nothing matches.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	Count(ctx context.Context) (int, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
