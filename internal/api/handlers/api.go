package handlers

import (
	"net/http"
	"time"

	"github.com/wryteon/wryteon/internal/api/problem"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
)

// APIHandler serves the bearer-token JSON API under /api/v1.
type APIHandler struct {
	Posts   PostService
	Audit   *audit.Logger
	BaseURL string
	Env     string
}

func NewAPIHandler(service PostService, auditLogger *audit.Logger, baseURL, env string) *APIHandler {
	return &APIHandler{Posts: service, Audit: auditLogger, BaseURL: baseURL, Env: env}
}

// postResource is the API representation of a post.
type postResource struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Status      posts.Status      `json:"status"`
	URL         string            `json:"url"`
	Excerpt     string            `json:"excerpt"`
	HTML        string            `json:"html,omitempty"`
	Blocks      editorjs.Document `json:"blocks"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	PublishedAt *time.Time        `json:"publishedAt"`
}

type listResponse struct {
	Items []postResource `json:"items"`
	Total int            `json:"total"`
}

func (h *APIHandler) resource(p posts.Post, withHTML bool) postResource {
	res := postResource{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Status:      p.Status,
		URL:         render.PostURL(h.BaseURL, p.Slug),
		Excerpt:     editorjs.Excerpt(p.Blocks, render.ExcerptLength),
		Blocks:      p.Blocks,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		PublishedAt: p.PublishedAt,
	}
	if withHTML {
		res.HTML = editorjs.RenderHTML(p.Blocks)
	}
	return res
}

// List returns published posts.
func (h *APIHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Posts.ListPublished(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	items := make([]postResource, 0, len(list))
	for _, p := range list {
		items = append(items, h.resource(p, false))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
}

// Get returns one post by slug, drafts included, with its rendered HTML.
func (h *APIHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.Posts.GetBySlug(r.Context(), pathParam(r, "slug"))
	if err != nil {
		writePostError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.resource(*post, true))
}

// Save inserts or updates a post, answering 201 for new posts and 200 for
// updates.
func (h *APIHandler) Save(w http.ResponseWriter, r *http.Request) {
	var payload posts.SavePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	post, err := h.Posts.Save(r.Context(), prepareSave(payload))
	if err != nil {
		h.Audit.LogFromRequest(r, audit.ActionPostSave, "post", payload.ID, audit.StatusFailure, map[string]string{"error": err.Error(), "via": "api"})
		writePostError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, audit.ActionPostSave, "post", post.ID, audit.StatusSuccess, map[string]string{"status": string(post.Status), "via": "api"})
	status := http.StatusOK
	if post.CreatedAt.Equal(post.UpdatedAt) {
		status = http.StatusCreated
	}
	w.Header().Set("Location", "/api/v1/posts/"+post.Slug)
	writeJSON(w, status, h.resource(*post, false))
}

// Delete removes a post by id.
func (h *APIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	deleted, err := h.Posts.Delete(r.Context(), id)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	if !deleted {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Post not found", posts.ErrNotFound, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, audit.ActionPostDelete, "post", id, audit.StatusSuccess, map[string]string{"via": "api"})
	w.WriteHeader(http.StatusNoContent)
}
