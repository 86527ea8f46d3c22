// Package storage selects and opens a storage backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/storage/postgres"
	"github.com/wryteon/wryteon/internal/storage/sqlite"
)

// Repository groups data access by domain.
type Repository interface {
	Posts() posts.Repository
	Users() auth.UserRepository
	Sessions() auth.SessionRepository

	Ping(ctx context.Context) error
	Close() error
	Backend() string
}

var (
	_ Repository = (*postgres.Repository)(nil)
	_ Repository = (*sqlite.Repository)(nil)
)

// Open connects to the backend named by cfg.URL: sqlite: URLs open a local
// file, postgres:// and postgresql:// URLs a connection pool.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Repository, error) {
	switch {
	case sqlite.IsURL(cfg.URL):
		repo, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		pool, err := postgres.NewPool(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns: int32(cfg.MaxConnections),
			MinConns: int32(cfg.MaxIdle),
		})
		if err != nil {
			return nil, err
		}
		repo, err := postgres.NewRepository(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme in %q", redact(cfg.URL))
	}
}

// Migrate brings the schema of the configured backend up to date. SQLite
// applies its schema on open, so only PostgreSQL needs work here.
func Migrate(cfg config.DatabaseConfig) error {
	if sqlite.IsURL(cfg.URL) {
		return nil
	}
	return postgres.MigrateUp(cfg.URL)
}

func redact(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
