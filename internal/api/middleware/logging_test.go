package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"page", "/hello", http.StatusOK, "info"},
		{"not found", "/missing", http.StatusNotFound, "info"},
		{"server error", "/admin", http.StatusInternalServerError, "error"},
		{"probe", "/healthz", http.StatusOK, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
			handler := RequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			require.Equal(t, tt.wantLevel, line["level"])
			require.Equal(t, tt.path, line["path"])
			require.Equal(t, float64(tt.status), line["status"])
			require.Equal(t, float64(4), line["bytes"])
		})
	}
}

func TestRequestLoggingUsesRequestLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	handler := CorrelationID(zerolog.New(&scoped))(RequestLogging(zerolog.New(&base))(okHandler()))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Empty(t, base.String())
	require.Contains(t, scoped.String(), "request_id")
}

func TestResponseWriterDefaultsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	_, _ = rw.Write([]byte("ok"))
	require.Equal(t, http.StatusOK, rw.status)
	require.Equal(t, 2, rw.bytes)
	require.Same(t, rec, rw.Unwrap())
}
