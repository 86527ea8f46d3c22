package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/wryteon/wryteon/internal/metrics"
)

// SessionCleaner deletes sessions whose expiry has passed.
type SessionCleaner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SessionCleanupArgs defines the job for removing expired admin sessions.
type SessionCleanupArgs struct{}

func (SessionCleanupArgs) Kind() string { return JobKindSessionCleanup }

// SessionCleanupWorker removes expired sessions so the sessions table does not
// grow with abandoned logins. Sessions are also dropped lazily on validation.
type SessionCleanupWorker struct {
	river.WorkerDefaults[SessionCleanupArgs]
	Sessions SessionCleaner
	Logger   *slog.Logger
}

func (SessionCleanupWorker) Kind() string { return JobKindSessionCleanup }

func (w SessionCleanupWorker) Timeout(*river.Job[SessionCleanupArgs]) time.Duration {
	return time.Minute
}

func (w SessionCleanupWorker) Work(ctx context.Context, job *river.Job[SessionCleanupArgs]) error {
	if w.Sessions == nil {
		return fmt.Errorf("session store not configured")
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	deleted, err := w.Sessions.DeleteExpiredSessions(ctx)
	metrics.SessionCleanupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	metrics.SessionsDeletedTotal.Add(float64(deleted))

	attempt := 0
	if job != nil {
		attempt = job.Attempt
	}
	logger.Info("session cleanup completed",
		"deleted", deleted,
		"attempt", attempt,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// NewWorkers registers every worker the server runs.
func NewWorkers(sessions SessionCleaner, logger *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[SessionCleanupArgs](workers, SessionCleanupWorker{Sessions: sessions, Logger: logger})
	return workers
}
