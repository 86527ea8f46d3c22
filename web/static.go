// Package web embeds the HTML templates and browser assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed robots.txt
var robotsTxt []byte

//go:embed static
var staticFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

// Templates returns the page templates, rooted so that names are bare file
// names such as "post.html".
func Templates() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic("web: templates directory missing: " + err.Error())
	}
	return sub
}

// Static returns the browser assets rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: static directory missing: " + err.Error())
	}
	return sub
}

// RobotsTxt returns the robots.txt body.
func RobotsTxt() []byte {
	return robotsTxt
}

// RobotsTxtHandler serves the robots.txt file.
func RobotsTxtHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(robotsTxt)
	})
}

// StaticHandler serves the embedded stylesheet and editor scripts under
// /static/. Assets are revalidated hourly; the editor script changes with
// deployments, so long-lived immutable caching is not used.
func StaticHandler() http.Handler {
	files := http.StripPrefix("/static/", http.FileServerFS(Static()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// No directory listings.
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		switch path.Ext(r.URL.Path) {
		case ".js", ".css":
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
		files.ServeHTTP(w, r)
	})
}
