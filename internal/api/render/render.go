// Package render turns posts into HTML pages, JSON-LD and RSS. The same
// renderer serves live requests and the static exporter.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
)

const layoutName = "layout.html"

// Page is the data every template receives. Data carries the page-specific
// view model.
type Page struct {
	Title       string
	Description string
	Canonical   string
	Site        config.SiteConfig
	User        *auth.User
	CSRFField   template.HTML
	CSRFToken   string
	Data        any
}

// ErrorData backs error.html.
type ErrorData struct {
	Status  int
	Message string
}

// Renderer holds one parsed template set per page, each combined with the
// shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	site   config.SiteConfig
	logger zerolog.Logger
}

// New parses every *.html page in fsys against layout.html.
func New(fsys fs.FS, site config.SiteConfig, logger zerolog.Logger) (*Renderer, error) {
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutName {
			continue
		}
		tmpl, err := template.New(path.Base(name)).Funcs(funcs).ParseFS(fsys, layoutName, name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no templates found")
	}

	return &Renderer{
		pages:  pages,
		site:   site,
		logger: logger.With().Str("component", "render").Logger(),
	}, nil
}

// Site returns the site settings pages are rendered with.
func (r *Renderer) Site() config.SiteConfig {
	return r.site
}

// Execute renders the named page into w.
func (r *Renderer) Execute(w io.Writer, name string, page Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	page.Site = r.site
	return tmpl.ExecuteTemplate(w, "layout", page)
}

// HTML renders a page as the response. Rendering happens into a buffer so a
// template failure still produces a clean 500.
func (r *Renderer) HTML(w http.ResponseWriter, req *http.Request, status int, name string, page Page) {
	var buf bytes.Buffer
	if err := r.Execute(&buf, name, page); err != nil {
		logger := zerolog.Ctx(req.Context())
		if logger.GetLevel() == zerolog.Disabled {
			logger = &r.logger
		}
		logger.Error().Err(err).Str("template", name).Msg("template error")
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// Error renders the plain error page.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	r.HTML(w, req, status, "error.html", Page{
		Title: http.StatusText(status),
		Data:  ErrorData{Status: status, Message: message},
	})
}

var funcs = template.FuncMap{
	"date":     formatDate,
	"datetime": formatDateTime,
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// formatDate is the human date shown next to posts.
func formatDate(v any) string {
	t, ok := asTime(v)
	if !ok {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}

// formatDateTime is the machine-readable form for <time datetime>.
func formatDateTime(v any) string {
	t, ok := asTime(v)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
