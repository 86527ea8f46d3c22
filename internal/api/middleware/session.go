package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/auth"
)

// SessionCookieName is the cookie carrying the admin session token.
const SessionCookieName = "session"

// SessionStore is the subset of auth.Service the session middleware needs.
type SessionStore interface {
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
	GetUserByID(ctx context.Context, id string) (*auth.User, error)
}

type userContextKey struct{}

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, user *auth.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey{}, user)
	return audit.WithActor(ctx, user.Username)
}

// CurrentUser returns the user attached by RequireSession, OptionalSession
// or JWTAuth, or nil.
func CurrentUser(ctx context.Context) *auth.User {
	user, _ := ctx.Value(userContextKey{}).(*auth.User)
	return user
}

// SessionToken returns the session cookie value, or "".
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// SetSessionCookie writes the session cookie with the session lifetime.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// resolveSession loads the user behind the request's session cookie.
func resolveSession(r *http.Request, store SessionStore) (*auth.User, error) {
	token := SessionToken(r)
	if token == "" {
		return nil, auth.ErrSessionNotFound
	}
	session, err := store.ValidateSession(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return store.GetUserByID(r.Context(), session.UserID)
}

// RequireSession admits requests with a valid session. Browsers navigating
// to a page are redirected to the login form; XHR and JSON callers get 401.
func RequireSession(store SessionStore, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveSession(r, store)
			if err != nil {
				if !errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrSessionExpired) && !errors.Is(err, auth.ErrUserNotFound) {
					LoggerFromContext(r.Context()).Error().Err(err).Msg("session lookup failed")
				}
				if SessionToken(r) != "" {
					ClearSessionCookie(w, secure)
				}
				if wantsJSON(r) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
					return
				}
				http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalSession attaches the user when a valid session cookie is present
// and otherwise passes the request through untouched.
func OptionalSession(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SessionToken(r) == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := resolveSession(r, store)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/admin/api/") || strings.HasPrefix(r.URL.Path, "/api/")
}
