package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
	"github.com/wryteon/wryteon/internal/metrics"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakeJobs struct {
	jobs []*rivertype.JobRow
	err  error
}

func (f fakeJobs) JobList(ctx context.Context, params *river.JobListParams) (*river.JobListResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &river.JobListResult{Jobs: f.jobs}, nil
}

func runHealth(t *testing.T, h *HealthChecker) (int, HealthCheck) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthChecker_Health(t *testing.T) {
	uploads := t.TempDir()
	stats := func() metrics.PoolStats { return metrics.PoolStats{Open: 2, InUse: 1, Idle: 1, MaxOpen: 10} }

	tests := []struct {
		name       string
		db         Pinger
		jobs       JobLister
		uploadDir  string
		wantStatus int
		wantState  string
		wantChecks map[string]string
	}{
		{
			name:       "sqlite without queue",
			db:         fakePinger{},
			uploadDir:  uploads,
			wantStatus: http.StatusOK,
			wantState:  "healthy",
			wantChecks: map[string]string{"database": "pass", "uploads": "pass", "job_queue": "pass"},
		},
		{
			name:       "postgres with queue",
			db:         fakePinger{},
			jobs:       fakeJobs{jobs: []*rivertype.JobRow{{ID: 1}}},
			uploadDir:  uploads,
			wantStatus: http.StatusOK,
			wantState:  "healthy",
			wantChecks: map[string]string{"database": "pass", "uploads": "pass", "job_queue": "pass"},
		},
		{
			name:       "missing upload dir degrades",
			db:         fakePinger{},
			uploadDir:  filepath.Join(uploads, "not-yet"),
			wantStatus: http.StatusOK,
			wantState:  "degraded",
			wantChecks: map[string]string{"database": "pass", "uploads": "warn"},
		},
		{
			name:       "database down",
			db:         fakePinger{err: errors.New("dial tcp: connection refused")},
			uploadDir:  uploads,
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
			wantChecks: map[string]string{"database": "fail"},
		},
		{
			name:       "no database",
			uploadDir:  uploads,
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
			wantChecks: map[string]string{"database": "fail"},
		},
		{
			name:       "queue table missing",
			db:         fakePinger{},
			jobs:       fakeJobs{err: errors.New(`relation "river_job" does not exist`)},
			uploadDir:  uploads,
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
			wantChecks: map[string]string{"job_queue": "fail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(tt.db, "sqlite", stats, tt.jobs, tt.uploadDir, "1.2.3", "abc123")
			status, body := runHealth(t, h)

			require.Equal(t, tt.wantStatus, status)
			require.Equal(t, tt.wantState, body.Status)
			require.Equal(t, "1.2.3", body.Version)
			require.Equal(t, "sqlite", body.Backend)
			for check, want := range tt.wantChecks {
				require.Equal(t, want, body.Checks[check].Status, check)
			}
		})
	}
}

func TestHealthChecker_DatabaseDetails(t *testing.T) {
	stats := func() metrics.PoolStats { return metrics.PoolStats{Open: 3, InUse: 2, Idle: 1, MaxOpen: 25} }
	h := NewHealthChecker(fakePinger{}, "postgres", stats, nil, t.TempDir(), "dev", "")

	_, body := runHealth(t, h)
	details := body.Checks["database"].Details
	require.EqualValues(t, 25, details["max_connections"])
	require.EqualValues(t, 2, details["in_use_connections"])
}

func TestHealthChecker_UploadPathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	h := NewHealthChecker(fakePinger{}, "sqlite", nil, nil, path, "dev", "")

	status, body := runHealth(t, h)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "fail", body.Checks["uploads"].Status)
}

func TestHealthChecker_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantBody   string
	}{
		{name: "ready", db: fakePinger{}, wantStatus: http.StatusOK, wantBody: "ready"},
		{name: "unavailable", db: fakePinger{err: errors.New("boom")}, wantStatus: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(tt.db, "sqlite", nil, nil, t.TempDir(), "dev", "")
			rec := httptest.NewRecorder()
			h.Readyz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			var body healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.wantBody, body.Status)
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
