package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wryteon/wryteon/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestLimiter(t *testing.T, cfg config.RateLimitConfig) *RateLimiter {
	t.Helper()
	limiter := NewRateLimiter(cfg)
	t.Cleanup(limiter.Stop)
	return limiter
}

func doRequest(handler http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLoginTier_BlocksAfterBurst(t *testing.T) {
	limiter := newTestLimiter(t, config.RateLimitConfig{LoginPerMinute: 3})
	handler := limiter.Tier(TierLogin)(okHandler())

	for i := 0; i < 3; i++ {
		if rec := doRequest(handler, "/auth/login", "192.0.2.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := doRequest(handler, "/auth/login", "192.0.2.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "20" {
		t.Errorf("Retry-After = %q, want 20", rec.Header().Get("Retry-After"))
	}
}

func TestLoginTier_PerIPIsolation(t *testing.T) {
	limiter := newTestLimiter(t, config.RateLimitConfig{LoginPerMinute: 1})
	handler := limiter.Tier(TierLogin)(okHandler())

	if rec := doRequest(handler, "/auth/login", "192.0.2.1:1"); rec.Code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", rec.Code)
	}
	if rec := doRequest(handler, "/auth/login", "192.0.2.1:2"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first client again: expected 429, got %d", rec.Code)
	}
	if rec := doRequest(handler, "/auth/login", "192.0.2.2:1"); rec.Code != http.StatusOK {
		t.Fatalf("second client: expected 200, got %d", rec.Code)
	}
}

func TestRateLimit_DisabledWhenZero(t *testing.T) {
	limiter := newTestLimiter(t, config.RateLimitConfig{})
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 50; i++ {
		if rec := doRequest(handler, "/", "192.0.2.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimit_ProbesExempt(t *testing.T) {
	limiter := newTestLimiter(t, config.RateLimitConfig{PublicPerMinute: 1})
	handler := limiter.Middleware(okHandler())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		for i := 0; i < 3; i++ {
			if rec := doRequest(handler, path, "192.0.2.1:1"); rec.Code != http.StatusOK {
				t.Fatalf("%s request %d: expected 200, got %d", path, i+1, rec.Code)
			}
		}
	}
}

func TestRateLimit_PublicTierDefault(t *testing.T) {
	limiter := newTestLimiter(t, config.RateLimitConfig{PublicPerMinute: 2})
	handler := limiter.Middleware(okHandler())

	doRequest(handler, "/", "192.0.2.9:1")
	doRequest(handler, "/", "192.0.2.9:1")
	if rec := doRequest(handler, "/", "192.0.2.9:1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	trusted := parseCIDRs([]string{"10.0.0.0/8", "not-a-cidr"})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"trusted proxy forwarded", "10.1.2.3:80", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.1.2.3"}, "203.0.113.5"},
		{"trusted proxy real ip", "10.1.2.3:80", map[string]string{"X-Real-IP": "203.0.113.6"}, "203.0.113.6"},
		{"untrusted ignores header", "198.51.100.1:80", map[string]string{"X-Forwarded-For": "203.0.113.5"}, "198.51.100.1"},
		{"no port", "198.51.100.2", nil, "198.51.100.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientKey(req, trusted); got != tt.want {
				t.Errorf("clientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCIDRsSkipsInvalid(t *testing.T) {
	nets := parseCIDRs([]string{"10.0.0.0/8", "bogus", " 192.168.0.0/16 "})
	if len(nets) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(nets))
	}
	if !nets[1].Contains(net.ParseIP("192.168.3.4")) {
		t.Error("expected second network to contain 192.168.3.4")
	}
}

func TestLimiterStoreCleanup(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PublicPerMinute: 5})
	defer store.Stop()

	store.limiter(TierPublic, "a")
	store.limiter(TierPublic, "b")
	store.limiters["public:a"].lastSeen = time.Now().Add(-time.Hour)

	store.cleanup(time.Now())

	if _, ok := store.limiters["public:a"]; ok {
		t.Error("stale limiter should be removed")
	}
	if _, ok := store.limiters["public:b"]; !ok {
		t.Error("fresh limiter should be kept")
	}

	store.Stop()
}

func TestTierFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TierFromContext(req.Context()); got != TierPublic {
		t.Errorf("default tier = %q, want public", got)
	}
	ctx := WithRateLimitTier(req.Context(), TierAPI)
	if got := TierFromContext(ctx); got != TierAPI {
		t.Errorf("tier = %q, want api", got)
	}
}
