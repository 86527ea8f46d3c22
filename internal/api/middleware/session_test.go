package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/auth"
)

type fakeSessions struct {
	sessions map[string]*auth.Session
	users    map[string]*auth.User
	err      error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: map[string]*auth.Session{
			"good":   {ID: "s1", UserID: "u1", Token: "good", ExpiresAt: time.Now().Add(time.Hour)},
			"orphan": {ID: "s2", UserID: "gone", Token: "orphan", ExpiresAt: time.Now().Add(time.Hour)},
		},
		users: map[string]*auth.User{
			"u1": {ID: "u1", Username: "admin"},
		},
	}
}

func (f *fakeSessions) ValidateSession(ctx context.Context, token string) (*auth.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token == "expired" {
		return nil, auth.ErrSessionExpired
	}
	session, ok := f.sessions[token]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessions) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return user, nil
}

func userEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := CurrentUser(r.Context()); user != nil {
			_, _ = w.Write([]byte(user.Username + "|" + audit.ActorFromContext(r.Context())))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func sessionRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
	return req
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(newFakeSessions(), false)(userEcho())

	tests := []struct {
		name         string
		path         string
		token        string
		wantCode     int
		wantBody     string
		wantLocation string
		wantCleared  bool
	}{
		{name: "valid session", path: "/admin", token: "good", wantCode: http.StatusOK, wantBody: "admin|admin"},
		{name: "no cookie redirects", path: "/admin", wantCode: http.StatusSeeOther, wantLocation: "/auth/login"},
		{name: "unknown token redirects and clears", path: "/admin/posts", token: "nope", wantCode: http.StatusSeeOther, wantLocation: "/auth/login", wantCleared: true},
		{name: "expired token", path: "/admin", token: "expired", wantCode: http.StatusSeeOther, wantLocation: "/auth/login", wantCleared: true},
		{name: "deleted user", path: "/admin", token: "orphan", wantCode: http.StatusSeeOther, wantLocation: "/auth/login", wantCleared: true},
		{name: "admin api gets 401", path: "/admin/api/posts", wantCode: http.StatusUnauthorized},
		{name: "upload gets 401", path: "/api/upload", token: "nope", wantCode: http.StatusUnauthorized, wantCleared: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, sessionRequest(http.MethodGet, tt.path, tt.token))

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, rec.Body.String())
			}
			require.Equal(t, tt.wantLocation, rec.Header().Get("Location"))

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == SessionCookieName && c.MaxAge < 0 {
					cleared = true
				}
			}
			require.Equal(t, tt.wantCleared, cleared)
		})
	}
}

func TestRequireSession_StoreErrorDeniesAccess(t *testing.T) {
	store := newFakeSessions()
	store.err = errors.New("db down")
	rec := httptest.NewRecorder()
	RequireSession(store, false)(userEcho()).ServeHTTP(rec, sessionRequest(http.MethodGet, "/admin", "good"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestOptionalSession(t *testing.T) {
	handler := OptionalSession(newFakeSessions())(userEcho())

	for token, want := range map[string]string{"good": "admin|admin", "": "anonymous", "nope": "anonymous"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, sessionRequest(http.MethodGet, "/hello", token))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, want, rec.Body.String(), "token %q", token)
	}
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", 7*24*time.Hour, true)
	ClearSessionCookie(rec, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	set := cookies[0]
	require.Equal(t, SessionCookieName, set.Name)
	require.Equal(t, "tok", set.Value)
	require.Equal(t, "/", set.Path)
	require.Equal(t, 604800, set.MaxAge)
	require.True(t, set.HttpOnly)
	require.True(t, set.Secure)
	require.Equal(t, http.SameSiteLaxMode, set.SameSite)

	require.Equal(t, "", cookies[1].Value)
	require.Less(t, cookies[1].MaxAge, 0)
	require.Contains(t, rec.Header().Values("Set-Cookie")[1], "Max-Age=0")
}
