package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name        string
		info        BuildInfo
		wantVersion string
		wantCommit  string
		wantDate    string
	}{
		{
			name:        "with all values",
			info:        BuildInfo{Version: "0.3.0", GitCommit: "abc123def456", BuildDate: "2026-01-28T12:00:00Z"},
			wantVersion: "0.3.0",
			wantCommit:  "abc123def456",
			wantDate:    "2026-01-28T12:00:00Z",
		},
		{
			name:        "with defaults",
			wantVersion: "dev",
			wantCommit:  "unknown",
			wantDate:    "unknown",
		},
		{
			name:        "with partial values",
			info:        BuildInfo{Version: "1.0.0", BuildDate: "2026-01-28T12:00:00Z"},
			wantVersion: "1.0.0",
			wantCommit:  "unknown",
			wantDate:    "2026-01-28T12:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/version", nil)
			w := httptest.NewRecorder()
			VersionHandler(tt.info).ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var resp versionResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", resp.Version, tt.wantVersion)
			}
			if resp.GitCommit != tt.wantCommit {
				t.Errorf("GitCommit = %q, want %q", resp.GitCommit, tt.wantCommit)
			}
			if resp.BuildDate != tt.wantDate {
				t.Errorf("BuildDate = %q, want %q", resp.BuildDate, tt.wantDate)
			}
			if resp.GoVersion != runtime.Version() {
				t.Errorf("GoVersion = %q, want %q", resp.GoVersion, runtime.Version())
			}
		})
	}
}

func TestVersionHandler_MethodNotAllowed(t *testing.T) {
	handler := VersionHandler(BuildInfo{Version: "0.3.0"})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/version", nil))

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
			}
			if allow := w.Header().Get("Allow"); allow != "GET, HEAD" {
				t.Errorf("Allow = %q, want %q", allow, "GET, HEAD")
			}
		})
	}
}
