package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/api/problem"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
)

// AdminHandler serves the admin pages and the editor's JSON endpoints.
// Every route is behind RequireSession.
type AdminHandler struct {
	Posts    PostService
	Renderer *render.Renderer
	Audit    *audit.Logger
	BaseURL  string
	Env      string
}

func NewAdminHandler(service PostService, renderer *render.Renderer, auditLogger *audit.Logger, baseURL, env string) *AdminHandler {
	return &AdminHandler{
		Posts:    service,
		Renderer: renderer,
		Audit:    auditLogger,
		BaseURL:  baseURL,
		Env:      env,
	}
}

func (h *AdminHandler) page(r *http.Request, title string, data any) render.Page {
	return render.Page{
		Title:     title,
		User:      middleware.CurrentUser(r.Context()),
		CSRFField: middleware.CSRFTemplateField(r),
		CSRFToken: middleware.CSRFToken(r),
		Data:      data,
	}
}

// Dashboard renders the admin landing page.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	count, err := h.Posts.Count(r.Context())
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("count posts")
		h.Renderer.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	h.Renderer.HTML(w, r, http.StatusOK, "admin_dashboard.html", h.page(r, "Dashboard", render.DashboardData{PostCount: count}))
}

// PostsList renders every post, drafts included.
func (h *AdminHandler) PostsList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Posts.ListAll(r.Context())
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("list posts")
		h.Renderer.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	h.Renderer.HTML(w, r, http.StatusOK, "admin_posts.html", h.page(r, "Posts", render.AdminPostsData{Posts: render.SummarizeAll(list)}))
}

// NewPost opens an empty editor.
func (h *AdminHandler) NewPost(w http.ResponseWriter, r *http.Request) {
	h.Renderer.HTML(w, r, http.StatusOK, "admin_editor.html", h.page(r, "New post", render.NewEditorData(nil)))
}

// EditPost opens the editor seeded with a stored post.
func (h *AdminHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	post, err := h.Posts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, posts.ErrNotFound) {
			h.Renderer.Error(w, r, http.StatusNotFound, "Post not found.")
			return
		}
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Str("post_id", id).Msg("load post for editing")
		h.Renderer.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	h.Renderer.HTML(w, r, http.StatusOK, "admin_editor.html", h.page(r, "Edit post", render.NewEditorData(post)))
}

type saveResponse struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// SavePost stores the editor's payload.
func (h *AdminHandler) SavePost(w http.ResponseWriter, r *http.Request) {
	var payload posts.SavePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	post, err := h.Posts.Save(r.Context(), prepareSave(payload))
	if err != nil {
		h.Audit.LogFromRequest(r, audit.ActionPostSave, "post", payload.ID, audit.StatusFailure, map[string]string{"error": err.Error()})
		writePostError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, audit.ActionPostSave, "post", post.ID, audit.StatusSuccess, map[string]string{"status": string(post.Status)})
	writeJSON(w, http.StatusOK, saveResponse{
		ID:   post.ID,
		Slug: post.Slug,
		URL:  render.PostURL(h.BaseURL, post.Slug),
	})
}

// DeletePost removes a post; 404 when it does not exist.
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Post id required", nil, h.Env)
		return
	}

	deleted, err := h.Posts.Delete(r.Context(), id)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	if !deleted {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Post not found", posts.ErrNotFound, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, audit.ActionPostDelete, "post", id, audit.StatusSuccess, nil)
	w.WriteHeader(http.StatusNoContent)
}

type previewRequest struct {
	Blocks json.RawMessage `json:"blocks"`
}

type previewResponse struct {
	HTML string `json:"html"`
}

// Preview renders unsaved blocks with the preview renderer. The body is
// either {"blocks": [...]} or {"blocks": {"blocks": [...]}} as the editor
// sends a whole document in some versions.
func (h *AdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	doc, err := editorjs.ParseDocument(req.Blocks)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid blocks", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{HTML: editorjs.RenderPreviewHTML(doc.Generic())})
}
