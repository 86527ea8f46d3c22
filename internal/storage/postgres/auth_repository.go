package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wryteon/wryteon/internal/auth"
)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ auth.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE username = $1`, username)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *UserRepository) CreateUser(ctx context.Context, user auth.User) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO users (id, username, email, password_hash, created_at)
VALUES ($1, $2, $3, $4, $5)
`, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		switch uniqueConstraint(err) {
		case "users_username_key", "users_email_key", "users_pkey":
			return auth.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) getUser(ctx context.Context, where string, arg string) (*auth.User, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at
  FROM users
`+where+`
 LIMIT 1`, arg)

	var user auth.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (r *UserRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

type SessionRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) CreateSession(ctx context.Context, session auth.Session) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO sessions (id, user_id, token, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)
`, session.ID, session.UserID, session.Token, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSessionByToken(ctx context.Context, token string) (*auth.Session, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, user_id, token, expires_at, created_at
  FROM sessions
 WHERE token = $1
 LIMIT 1`, token)

	var session auth.Session
	if err := row.Scan(&session.ID, &session.UserID, &session.Token, &session.ExpiresAt, &session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	return &session, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.queryer().Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteSessionByToken(ctx context.Context, token string) error {
	if _, err := r.queryer().Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
