package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/wryteon/wryteon/internal/metrics"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Backend   string                 `json:"backend"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Pinger is satisfied by storage.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobLister is the slice of the River client used to inspect the queue.
type JobLister interface {
	JobList(ctx context.Context, params *river.JobListParams) (*river.JobListResult, error)
}

// HealthChecker runs the checks behind /health and /readyz.
type HealthChecker struct {
	db        Pinger
	backend   string
	poolStats metrics.StatsSource
	jobs      JobLister
	uploadDir string
	version   string
	gitCommit string
}

// NewHealthChecker creates a health checker. poolStats and jobs may be nil:
// the job queue only runs on PostgreSQL.
func NewHealthChecker(db Pinger, backend string, poolStats metrics.StatsSource, jobs JobLister, uploadDir, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		backend:   backend,
		poolStats: poolStats,
		jobs:      jobs,
		uploadDir: uploadDir,
		version:   version,
		gitCommit: gitCommit,
	}
}

// Health returns the full health report.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":  h.checkDatabase(ctx),
			"uploads":   h.checkUploads(),
			"job_queue": h.checkJobQueue(ctx),
		}

		overallStatus := "healthy"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overallStatus = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			} else if check.Status == "warn" && overallStatus == "healthy" {
				overallStatus = "degraded"
			}
		}
		if statusCode == http.StatusOK {
			metrics.HealthStatus.Set(1)
		} else {
			metrics.HealthStatus.Set(0)
		}

		writeJSON(w, statusCode, HealthCheck{
			Status:    overallStatus,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Backend:   h.backend,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readyz reports whether the store answers. Load balancers use it to hold
// traffic until the database is reachable.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if h.checkDatabase(ctx).Status == "fail" {
			respondHealth(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		respondHealth(w, http.StatusOK, "ready")
	})
}

// checkDatabase pings the configured store with its own 2s budget.
func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()

	if h.db == nil {
		return CheckResult{
			Status:  "fail",
			Message: "Database not initialized",
			Details: map[string]any{
				"remediation": "Check that DATABASE_URL is set correctly",
			},
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.db.Ping(dbCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		details := map[string]any{"error": err.Error()}
		switch {
		case dbCtx.Err() == context.DeadlineExceeded:
			message = "Database ping timed out after 2 seconds"
			details["remediation"] = "Check database performance or network latency"
		case strings.Contains(err.Error(), "connection refused"):
			message = "Database connection refused"
			details["remediation"] = "Verify PostgreSQL is running and DATABASE_URL host/port are correct"
		case strings.Contains(err.Error(), "authentication failed"):
			message = "Database authentication failed"
			details["remediation"] = "Verify DATABASE_URL username and password are correct"
		default:
			details["remediation"] = "Check DATABASE_URL and the database service status"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: details}
	}

	result := CheckResult{
		Status:    "pass",
		Message:   h.backend + " reachable",
		LatencyMs: latency,
	}
	if h.poolStats != nil {
		stats := h.poolStats()
		result.Details = map[string]any{
			"max_connections":    stats.MaxOpen,
			"open_connections":   stats.Open,
			"in_use_connections": stats.InUse,
			"idle_connections":   stats.Idle,
		}
	}
	return result
}

// checkUploads verifies the upload directory exists and is a directory.
func (h *HealthChecker) checkUploads() CheckResult {
	info, err := os.Stat(h.uploadDir)
	if err != nil {
		return CheckResult{
			Status:  "warn",
			Message: "Upload directory missing",
			Details: map[string]any{
				"path":        h.uploadDir,
				"remediation": "It is created on first upload; check UPLOAD_DIR if uploads fail",
			},
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Status:  "fail",
			Message: "Upload path is not a directory",
			Details: map[string]any{"path": h.uploadDir},
		}
	}
	return CheckResult{Status: "pass", Message: "Upload directory present"}
}

// checkJobQueue lists pending River jobs. SQLite deployments run without
// the queue, which is reported but not a failure.
func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	start := time.Now()

	if h.jobs == nil {
		return CheckResult{
			Status:  "pass",
			Message: "Job queue disabled for this backend",
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	params := river.NewJobListParams().
		States(rivertype.JobStateAvailable, rivertype.JobStateRunning, rivertype.JobStateRetryable).
		First(100)
	result, err := h.jobs.JobList(jobCtx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to query job queue",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "Run migrations so the river_job table exists",
			},
		}
	}

	active := 0
	if result != nil {
		active = len(result.Jobs)
	}
	return CheckResult{
		Status:    "pass",
		Message:   "River job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"active_jobs": active},
	}
}

// Healthz returns a lightweight liveness response.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
