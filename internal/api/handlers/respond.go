package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/api/problem"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/domain/posts"
)

// PostService is the post API the handlers need; *posts.Service implements it.
type PostService interface {
	Save(ctx context.Context, payload posts.SavePayload) (*posts.Post, error)
	GetBySlug(ctx context.Context, slug string) (*posts.Post, error)
	GetByID(ctx context.Context, id string) (*posts.Post, error)
	ListPublished(ctx context.Context) ([]posts.Post, error)
	ListAll(ctx context.Context) ([]posts.Post, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AuthService is the account and session API the handlers need;
// *auth.Service implements it.
type AuthService interface {
	VerifyLogin(ctx context.Context, username, password string) (*auth.User, error)
	CreateSession(ctx context.Context, userID string) (string, error)
	DeleteSession(ctx context.Context, token string) error
	SessionTTL() time.Duration
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// prepareSave trims the payload and proposes a slug from the title when the
// editor sent none.
func prepareSave(payload posts.SavePayload) posts.SavePayload {
	payload.Slug = strings.TrimSpace(payload.Slug)
	if payload.Slug == "" {
		payload.Slug = posts.Slugify(payload.Title)
	}
	return payload
}

// writeDecodeError answers a body that could not be read or parsed.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	if middleware.IsBodyTooLarge(err) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid JSON body", err, env)
}

// writePostError maps post domain errors onto problem responses.
func writePostError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var invalid posts.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		fields := make(map[string]string, len(invalid))
		for _, v := range invalid {
			fields[v.Field] = v.Message
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid post", err, env,
			problem.WithDetail(err.Error()), problem.WithErrors(fields))
	case errors.Is(err, posts.ErrSlugTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Slug already in use", err, env,
			problem.WithDetail(err.Error()))
	case errors.Is(err, posts.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Post not found", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}
