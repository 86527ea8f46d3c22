package render

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
)

// ExcerptLength is the rune limit for listing and feed summaries.
const ExcerptLength = 200

// PostSummary is a post as shown in listings.
type PostSummary struct {
	ID          string
	Title       string
	Slug        string
	Status      posts.Status
	Excerpt     string
	PublishedAt *time.Time
	UpdatedAt   time.Time
}

// Summarize builds the listing entry for a post.
func Summarize(p posts.Post) PostSummary {
	return PostSummary{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Status:      p.Status,
		Excerpt:     editorjs.Excerpt(p.Blocks, ExcerptLength),
		PublishedAt: p.PublishedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// SummarizeAll maps Summarize over a list.
func SummarizeAll(list []posts.Post) []PostSummary {
	out := make([]PostSummary, 0, len(list))
	for _, p := range list {
		out = append(out, Summarize(p))
	}
	return out
}

// IndexData backs index.html.
type IndexData struct {
	Posts []PostSummary
}

// PostData backs post.html. Body is sanitized output of the block renderer.
type PostData struct {
	Post    posts.Post
	Body    template.HTML
	JSONLD  template.JS
	CanEdit bool
}

// NewPostData renders the body and structured data of a post.
func NewPostData(p posts.Post, baseURL string, site config.SiteConfig, canEdit bool) (PostData, error) {
	jsonld, err := BlogPosting(p, baseURL, site)
	if err != nil {
		return PostData{}, err
	}
	return PostData{
		Post:    p,
		Body:    template.HTML(editorjs.RenderHTML(p.Blocks)),
		JSONLD:  jsonld,
		CanEdit: canEdit,
	}, nil
}

// PostPage is the full page for a post.
func PostPage(p posts.Post, baseURL string, site config.SiteConfig, canEdit bool) (Page, error) {
	data, err := NewPostData(p, baseURL, site, canEdit)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Title:       p.Title,
		Description: editorjs.Excerpt(p.Blocks, 160),
		Canonical:   PostURL(baseURL, p.Slug),
		Data:        data,
	}, nil
}

// LoginData backs login.html.
type LoginData struct {
	Username string
	Error    string
}

// DashboardData backs admin_dashboard.html.
type DashboardData struct {
	PostCount int
}

// AdminPostsData backs admin_posts.html.
type AdminPostsData struct {
	Posts []PostSummary
}

// EditorData backs admin_editor.html. InitialData is the JSON the editor
// component is seeded with.
type EditorData struct {
	IsNew       bool
	ID          string
	Title       string
	Slug        string
	Status      string
	PublishedAt string
	InitialData string
}

// Component is the <editor-component> element seeded with InitialData.
// html/template treats a "data" attribute as a URL, so the element is built
// here with plain HTML escaping.
func (d EditorData) Component() template.HTML {
	return template.HTML(`<editor-component data="` + html.EscapeString(d.InitialData) + `"></editor-component>`)
}

// datetimeLocal is the value format of <input type="datetime-local">.
const datetimeLocal = "2006-01-02T15:04"

// NewEditorData prepares the editor for p, or for a blank draft when p is nil.
func NewEditorData(p *posts.Post) EditorData {
	if p == nil {
		return EditorData{
			IsNew:       true,
			Status:      string(posts.StatusDraft),
			InitialData: `{"blocks":[]}`,
		}
	}

	data := EditorData{
		ID:     p.ID,
		Title:  p.Title,
		Slug:   p.Slug,
		Status: string(p.Status),
	}
	if p.PublishedAt != nil {
		data.PublishedAt = p.PublishedAt.UTC().Format(datetimeLocal)
	}
	raw, err := json.Marshal(p.Blocks)
	if err != nil {
		raw = []byte(`{"blocks":[]}`)
	}
	// Round-trip through the tolerant decoder so a damaged stored document
	// still opens as an empty editor.
	doc := editorjs.DecodeInitialData(string(raw))
	raw, _ = json.Marshal(doc)
	data.InitialData = string(raw)
	return data
}

// PostURL is the public address of a post.
func PostURL(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(slug)
}

// BlogPosting returns schema.org BlogPosting JSON-LD for a post.
func BlogPosting(p posts.Post, baseURL string, site config.SiteConfig) (template.JS, error) {
	postURL := PostURL(baseURL, p.Slug)
	doc := map[string]any{
		"@context":         "https://schema.org",
		"@type":            "BlogPosting",
		"@id":              postURL,
		"headline":         p.Title,
		"url":              postURL,
		"mainEntityOfPage": postURL,
		"dateModified":     p.UpdatedAt.UTC().Format(time.RFC3339),
		"wordCount":        editorjs.DocumentStats(p.Blocks).Words,
		"publisher": map[string]any{
			"@type": "Organization",
			"name":  site.Title,
			"url":   strings.TrimRight(baseURL, "/") + "/",
		},
	}
	if p.PublishedAt != nil {
		doc["datePublished"] = p.PublishedAt.UTC().Format(time.RFC3339)
	}
	if excerpt := editorjs.Excerpt(p.Blocks, 160); excerpt != "" {
		doc["description"] = excerpt
	}

	// json.Marshal escapes <, > and &, so the output cannot close the
	// surrounding script element.
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal JSON-LD: %w", err)
	}
	return template.JS(raw), nil
}
