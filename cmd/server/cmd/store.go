package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/storage"
)

const connectTimeout = 10 * time.Second

// openStore connects to the configured backend. When migrate is set the
// PostgreSQL schema is brought up to date first.
func openStore(cfg config.Config, migrate bool) (storage.Repository, error) {
	if migrate {
		if err := storage.Migrate(cfg.Database); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	repo, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return repo, nil
}

func newAuthService(cfg config.Config, repo storage.Repository, logger zerolog.Logger) *auth.Service {
	return auth.NewService(repo.Users(), repo.Sessions(), cfg.Auth.SessionTTL, logger)
}

// bootstrapAdminUser creates the configured admin account unless a user with
// that name already exists. It reports whether an account was created.
func bootstrapAdminUser(ctx context.Context, cfg config.Config, users *auth.Service, logger zerolog.Logger) (bool, error) {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Username == "" || bootstrap.Password == "" {
		logger.Warn().Msg("admin bootstrap username or password not set; skipping")
		return false, nil
	}

	_, err := users.GetUserByUsername(ctx, bootstrap.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return false, fmt.Errorf("check admin user: %w", err)
	}

	if _, err := users.CreateUser(ctx, bootstrap.Username, bootstrap.Email, bootstrap.Password); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return false, nil
		}
		return false, fmt.Errorf("create admin user: %w", err)
	}

	// Redact email in production to avoid PII in logs.
	event := logger.Info().Str("username", bootstrap.Username)
	if !cfg.IsProduction() {
		event = event.Str("email", bootstrap.Email)
	}
	event.Msg("bootstrapped admin user")
	if bootstrap.Password == config.Defaults().AdminBootstrap.Password {
		logger.Warn().Str("username", bootstrap.Username).Msg("admin user has the default password; change it")
	}
	return true, nil
}
