// Package auth provides password hashing, cookie sessions and API tokens for
// the admin area.
//
// Sessions are opaque random tokens stored server-side with a fixed lifetime.
// A session that is found expired on lookup is deleted immediately; expired
// sessions nobody looks up again are removed in bulk by DeleteExpiredSessions.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

const (
	// BcryptCost is the cost factor for password hashes.
	BcryptCost = 10

	// DefaultSessionTTL is how long a login stays valid.
	DefaultSessionTTL = 7 * 24 * time.Hour

	sessionTokenBytes = 32
)

// User is an admin account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session binds a random token to a user until ExpiresAt.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// UserRepository stores admin accounts. Lookups return ErrUserNotFound;
// CreateUser returns ErrUserExists on a username or email conflict.
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user User) error
}

// SessionRepository stores login sessions. GetSessionByToken returns
// ErrSessionNotFound when the token is unknown.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionByToken(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}
