package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wryteon/wryteon/internal/auth"
)

type UserRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ auth.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getUser(ctx, `username = ?`, username)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getUser(ctx, `id = ?`, id)
}

func (r *UserRepository) CreateUser(ctx context.Context, user auth.User) error {
	_, err := pick(r.db, r.tx).ExecContext(ctx, `
INSERT INTO users (id, username, email, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
`, user.ID, user.Username, user.Email, user.PasswordHash, formatTime(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err, "users.") {
			return auth.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) getUser(ctx context.Context, where string, arg string) (*auth.User, error) {
	row := pick(r.db, r.tx).QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+where+` LIMIT 1`, arg)

	var (
		user      auth.User
		createdAt string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = created
	return &user, nil
}

type SessionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) CreateSession(ctx context.Context, session auth.Session) error {
	_, err := pick(r.db, r.tx).ExecContext(ctx, `
INSERT INTO sessions (id, user_id, token, expires_at, created_at)
VALUES (?, ?, ?, ?, ?)
`, session.ID, session.UserID, session.Token, formatTime(session.ExpiresAt), formatTime(session.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSessionByToken(ctx context.Context, token string) (*auth.Session, error) {
	row := pick(r.db, r.tx).QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at FROM sessions WHERE token = ? LIMIT 1`, token)

	var (
		session              auth.Session
		expiresAt, createdAt string
	)
	if err := row.Scan(&session.ID, &session.UserID, &session.Token, &expiresAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var err error
	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := pick(r.db, r.tx).ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteSessionByToken(ctx context.Context, token string) error {
	if _, err := pick(r.db, r.tx).ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return r.deleteWhere(ctx, `user_id = ?`, userID)
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	return r.deleteWhere(ctx, `expires_at < ?`, formatTime(before))
}

func (r *SessionRepository) deleteWhere(ctx context.Context, where string, arg string) (int64, error) {
	res, err := pick(r.db, r.tx).ExecContext(ctx, `DELETE FROM sessions WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return n, nil
}
