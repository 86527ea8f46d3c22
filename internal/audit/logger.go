// Package audit records security-relevant admin actions (logins, logouts,
// post saves and deletions) as structured log lines tagged audit=true so
// they can be filtered out of the regular request log.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Actions recorded by the server.
const (
	ActionLogin       = "auth.login"
	ActionLogout      = "auth.logout"
	ActionTokenIssue  = "auth.token"
	ActionPostSave    = "post.save"
	ActionPostDelete  = "post.delete"
	ActionImageUpload = "image.upload"
	ActionUserCreate  = "user.create"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry represents a single audit log entry
type Entry struct {
	Timestamp    time.Time
	Action       string
	Actor        string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Status       string
	Details      map[string]string
}

// Logger writes audit entries through zerolog.
type Logger struct {
	out zerolog.Logger
}

// NewLogger creates an audit logger on top of the application logger.
func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{out: base.With().Bool("audit", true).Logger()}
}

// Log writes an audit entry. Failures are logged at warn so they stand out.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = "anonymous"
	}

	event := l.out.Info()
	if entry.Status == StatusFailure {
		event = l.out.Warn()
	}
	event = event.
		Time("at", entry.Timestamp).
		Str("action", entry.Action).
		Str("actor", entry.Actor).
		Str("status", entry.Status).
		Str("ip", entry.IPAddress)
	if entry.ResourceType != "" {
		event = event.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		event = event.Str("resource_id", entry.ResourceID)
	}
	if len(entry.Details) > 0 {
		details := zerolog.Dict()
		for k, v := range entry.Details {
			details = details.Str(k, v)
		}
		event = event.Dict("details", details)
	}
	event.Msg(entry.Action)
}

// LogSuccess logs a successful operation.
func (l *Logger) LogSuccess(action, actor, resourceType, resourceID, ipAddress string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Status:       StatusSuccess,
		Details:      details,
	})
}

// LogFailure logs a failed operation.
func (l *Logger) LogFailure(action, actor, ipAddress string, details map[string]string) {
	l.Log(Entry{
		Action:    action,
		Actor:     actor,
		IPAddress: ipAddress,
		Status:    StatusFailure,
		Details:   details,
	})
}

// LogFromRequest logs an action using the actor stored on the request context
// and the client address of the request.
func (l *Logger) LogFromRequest(r *http.Request, action, resourceType, resourceID, status string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        ActorFromContext(r.Context()),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ClientIP(r),
		Status:       status,
		Details:      details,
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the host part
// of RemoteAddr, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type contextKey string

const (
	loggerKey contextKey = "auditLogger"
	actorKey  contextKey = "auditActor"
)

// WithLogger adds an audit logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from the context. It returns nil
// when none was attached; Logger methods are nil-safe.
func FromContext(ctx context.Context) *Logger {
	logger, _ := ctx.Value(loggerKey).(*Logger)
	return logger
}

// WithActor records the authenticated username for later audit entries.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey, username)
}

// ActorFromContext returns the username set by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}
