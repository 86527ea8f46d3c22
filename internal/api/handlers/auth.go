package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/api/problem"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/metrics"
)

const invalidLoginMessage = "Invalid username or password"

// AuthHandler serves the login form, logout, and API token issuance.
type AuthHandler struct {
	Auth         AuthService
	JWT          *auth.JWTManager
	Renderer     *render.Renderer
	Audit        *audit.Logger
	CookieSecure bool
	Env          string
}

func NewAuthHandler(service AuthService, jwt *auth.JWTManager, renderer *render.Renderer, auditLogger *audit.Logger, cookieSecure bool, env string) *AuthHandler {
	return &AuthHandler{
		Auth:         service,
		JWT:          jwt,
		Renderer:     renderer,
		Audit:        auditLogger,
		CookieSecure: cookieSecure,
		Env:          env,
	}
}

// LoginPage shows the login form, or sends signed-in users to the dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUser(r.Context()) != nil {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, render.LoginData{})
}

// Login checks the submitted credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		status := http.StatusBadRequest
		if middleware.IsBodyTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		h.renderLogin(w, r, status, render.LoginData{Error: "Could not read the form."})
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, render.LoginData{Username: username, Error: "Username and password are required."})
		return
	}

	user, err := h.Auth.VerifyLogin(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			h.Audit.LogFailure(audit.ActionLogin, username, audit.ClientIP(r), map[string]string{"reason": "invalid_credentials"})
			h.renderLogin(w, r, http.StatusUnauthorized, render.LoginData{Username: username, Error: invalidLoginMessage})
			return
		}
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("verify login")
		h.renderLogin(w, r, http.StatusInternalServerError, render.LoginData{Username: username, Error: "Login is unavailable right now."})
		return
	}

	token, err := h.Auth.CreateSession(r.Context(), user.ID)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Str("user_id", user.ID).Msg("create session")
		h.renderLogin(w, r, http.StatusInternalServerError, render.LoginData{Username: username, Error: "Login is unavailable right now."})
		return
	}

	middleware.SetSessionCookie(w, token, h.Auth.SessionTTL(), h.CookieSecure)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	h.Audit.LogSuccess(audit.ActionLogin, user.Username, "user", user.ID, audit.ClientIP(r), nil)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout ends the current session and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.Auth.DeleteSession(r.Context(), token); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
			middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("delete session")
		}
		h.Audit.LogFromRequest(r, audit.ActionLogout, "session", "", audit.StatusSuccess, nil)
	}
	middleware.ClearSessionCookie(w, h.CookieSecure)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresAt string `json:"expires_at"`
}

// Token exchanges credentials for an API bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.JWT == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", errors.New("token issuing not configured"), h.Env)
		return
	}

	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Username and password are required", nil, h.Env)
		return
	}

	user, err := h.Auth.VerifyLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
			h.Audit.LogFailure(audit.ActionTokenIssue, req.Username, audit.ClientIP(r), map[string]string{"reason": "invalid_credentials"})
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, invalidLoginMessage, err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	token, err := h.JWT.Generate(*user)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	h.Audit.LogSuccess(audit.ActionTokenIssue, user.Username, "user", user.ID, audit.ClientIP(r), nil)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: time.Now().Add(h.JWT.Expiry()).UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data render.LoginData) {
	h.Renderer.HTML(w, r, status, "login.html", render.Page{
		Title:     "Sign in",
		CSRFField: middleware.CSRFTemplateField(r),
		CSRFToken: middleware.CSRFToken(r),
		Data:      data,
	})
}
