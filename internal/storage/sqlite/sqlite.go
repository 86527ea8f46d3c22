// Package sqlite is a single-file storage backend for development and small
// deployments. It is selected with a DATABASE_URL of the form
// sqlite:path/to/file.db (or sqlite::memory:).
//
// The pure-Go modernc.org/sqlite driver is used by default; building with
// -tags cgo_sqlite switches to mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/domain/posts"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// IsURL reports whether databaseURL selects this backend.
func IsURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "sqlite:")
}

// DataSource extracts the file path from a sqlite: URL.
func DataSource(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite:")
	if strings.HasPrefix(path, "//") {
		path = strings.TrimPrefix(path, "//")
	}
	return path
}

// Repository groups the SQLite repositories over one database handle.
type Repository struct {
	db *sql.DB
	tx *sql.Tx
}

// Open opens (creating if needed) the database named by a sqlite: URL and
// applies the schema.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	source := DataSource(databaseURL)
	if source == "" {
		return nil, fmt.Errorf("sqlite: empty data source in %q", databaseURL)
	}

	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps per-connection pragmas and in-memory databases
	// consistent, and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// DB exposes the underlying handle for pool metrics.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) Posts() posts.Repository {
	return &PostRepository{db: r.db, tx: r.tx}
}

func (r *Repository) Users() auth.UserRepository {
	return &UserRepository{db: r.db, tx: r.tx}
}

func (r *Repository) Sessions() auth.SessionRepository {
	return &SessionRepository{db: r.db, tx: r.tx}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Backend() string {
	return "sqlite"
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func pick(db *sql.DB, tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return db
}

func withTx(ctx context.Context, db *sql.DB, tx *sql.Tx, fn func(*sql.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return t.UTC(), nil
}

// isUniqueViolation matches the constraint error text both drivers report,
// e.g. "UNIQUE constraint failed: posts.slug".
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
