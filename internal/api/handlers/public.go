package handlers

import (
	"errors"
	"net/http"

	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/domain/posts"
)

// PublicHandler serves the reader-facing pages.
type PublicHandler struct {
	Posts    PostService
	Renderer *render.Renderer
	BaseURL  string
}

func NewPublicHandler(service PostService, renderer *render.Renderer, baseURL string) *PublicHandler {
	return &PublicHandler{Posts: service, Renderer: renderer, BaseURL: baseURL}
}

// Index lists published posts, newest first.
func (h *PublicHandler) Index(w http.ResponseWriter, r *http.Request) {
	list, err := h.Posts.ListPublished(r.Context())
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("list published posts")
		h.Renderer.Error(w, r, http.StatusInternalServerError, "")
		return
	}

	h.Renderer.HTML(w, r, http.StatusOK, "index.html", render.Page{
		Description: h.Renderer.Site().Description,
		Canonical:   h.BaseURL,
		User:        middleware.CurrentUser(r.Context()),
		Data:        render.IndexData{Posts: render.SummarizeAll(list)},
	})
}

// Post renders one post. Drafts are only visible to a signed-in admin, and
// anonymous readers get the same 404 as for a missing slug.
func (h *PublicHandler) Post(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	user := middleware.CurrentUser(r.Context())

	post, err := h.Posts.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, posts.ErrNotFound) {
			h.Renderer.Error(w, r, http.StatusNotFound, "")
			return
		}
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Str("slug", slug).Msg("load post")
		h.Renderer.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	if !post.IsPublished() && user == nil {
		h.Renderer.Error(w, r, http.StatusNotFound, "")
		return
	}

	page, err := render.PostPage(*post, h.BaseURL, h.Renderer.Site(), user != nil)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Str("slug", slug).Msg("render post")
		h.Renderer.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	page.User = user
	if !post.IsPublished() {
		w.Header().Set("X-Robots-Tag", "noindex")
	}
	h.Renderer.HTML(w, r, http.StatusOK, "post.html", page)
}

// Feed serves the RSS feed of published posts.
func (h *PublicHandler) Feed(w http.ResponseWriter, r *http.Request) {
	list, err := h.Posts.ListPublished(r.Context())
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("list posts for feed")
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}

	body, err := render.Feed(list, h.BaseURL, h.Renderer.Site())
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("render feed")
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
