package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/metrics"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierLogin  RateLimitTier = "login" // credential endpoints, per client IP
	TierAPI    RateLimitTier = "api"   // bearer-token JSON API
	TierAdmin  RateLimitTier = "admin"
)

const (
	limiterIdleTTL         = 15 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

type rateLimitKey string

const rateLimitTierKey rateLimitKey = "rateLimitTier"

// WithRateLimitTier tags the request context so RateLimit picks a tier.
func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitTierKey, tier)
}

// TierFromContext returns the tier set by WithRateLimitTier, or TierPublic.
func TierFromContext(ctx context.Context) RateLimitTier {
	if tier, ok := ctx.Value(rateLimitTierKey).(RateLimitTier); ok {
		return tier
	}
	return TierPublic
}

// RateLimiter enforces per-client token buckets for each tier.
type RateLimiter struct {
	store *limiterStore
}

// NewRateLimiter starts the limiter and its idle-entry sweeper. Call Stop on shutdown.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{store: newLimiterStore(cfg)}
}

// Stop ends the background sweeper.
func (l *RateLimiter) Stop() {
	l.store.Stop()
}

// Tier returns middleware that limits requests under the given tier. Routes
// stack it directly, e.g. limiter.Tier(TierLogin)(loginHandler).
func (l *RateLimiter) Tier(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithRateLimitTier(r.Context(), tier)
			if !l.allow(w, r.WithContext(ctx), tier) {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Middleware applies the tier already set on the context (TierPublic by
// default). Probe endpoints are never limited.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.allow(w, r, TierFromContext(r.Context())) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(w http.ResponseWriter, r *http.Request, tier RateLimitTier) bool {
	limiter := l.store.limiter(tier, clientKey(r, l.store.trustedProxies))
	if limiter == nil || limiter.Allow() {
		return true
	}

	retryAfter := time.Minute / time.Duration(max(l.store.perMinute[tier], 1))
	w.Header().Set("Retry-After", strconv.Itoa(max(int(retryAfter.Seconds()), 1)))
	if tier == TierLogin {
		metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
	}
	LoggerFromContext(r.Context()).Warn().Str("tier", string(tier)).Str("path", r.URL.Path).Msg("rate limit exceeded")
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	return false
}

type limiterStore struct {
	mu             sync.Mutex
	limiters       map[string]*limiterEntry
	perMinute      map[RateLimitTier]int
	trustedProxies []*net.IPNet
	stopOnce       sync.Once
	stopCleanup    chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	store := &limiterStore{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierLogin:  cfg.LoginPerMinute,
			TierAPI:    cfg.APIPerMinute,
			TierAdmin:  cfg.AdminPerMinute,
		},
		trustedProxies: parseCIDRs(cfg.TrustedProxyCIDRs),
		stopCleanup:    make(chan struct{}),
	}
	go store.cleanupLoop()
	return store
}

// limiter returns the bucket for tier and client, or nil when the tier is unlimited.
func (s *limiterStore) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	s.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (s *limiterStore) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *limiterStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// clientKey identifies the client by remote IP. X-Forwarded-For and X-Real-IP
// are only honoured when the connection comes from a trusted proxy.
func clientKey(r *http.Request, trusted []*net.IPNet) string {
	if r == nil {
		return ""
	}

	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trusted) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trusted []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range trusted {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(values))
	for _, value := range values {
		_, cidr, err := net.ParseCIDR(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		nets = append(nets, cidr)
	}
	return nets
}
