package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service implements login, account and session operations.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates an auth service. A non-positive ttl selects
// DefaultSessionTTL.
func NewService(users UserRepository, sessions SessionRepository, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger.With().Str("component", "auth").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SessionTTL is the lifetime given to new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// CreateUser hashes password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, fmt.Errorf("create user: username and password are required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, ErrUserExists) {
			s.logger.Error().Err(err).Str("username", username).Msg("create user failed")
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.users.GetUserByID(ctx, id)
}

// VerifyLogin checks credentials and returns the user. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) VerifyLogin(ctx context.Context, username, password string) (*User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash is unusable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateSession starts a session for userID and returns its token.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// ValidateSession resolves a token to its session. Expired sessions are
// deleted and reported as ErrSessionExpired.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if session.Expired(s.now()) {
		if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("delete expired session failed")
		}
		return nil, ErrSessionExpired
	}
	return session, nil
}

// DeleteSession ends the session identified by token. Unknown tokens are
// not an error.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSessionByToken(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions ends every session of a user.
func (s *Service) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return n, nil
}

// DeleteExpiredSessions removes all sessions that expired before now.
func (s *Service) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
