package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
	"github.com/wryteon/wryteon/web"
)

type staticPosts struct {
	list []posts.Post
	err  error
}

func (s staticPosts) ListPublished(ctx context.Context) ([]posts.Post, error) {
	return s.list, s.err
}

func testPost(t *testing.T, slug, title, text string) posts.Post {
	t.Helper()
	doc, err := editorjs.ParseDocument([]byte(`{"blocks":[{"type":"paragraph","data":{"text":"` + text + `"}}]}`))
	require.NoError(t, err)
	published := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	return posts.Post{
		ID:          slug,
		Title:       title,
		Slug:        slug,
		Blocks:      doc,
		Status:      posts.StatusPublished,
		CreatedAt:   published,
		UpdatedAt:   published,
		PublishedAt: &published,
	}
}

func newExporter(t *testing.T, source PostSource, uploadDir string) *Exporter {
	t.Helper()
	renderer, err := render.New(web.Templates(), config.SiteConfig{Title: "Static Blog", Description: "Exported"}, zerolog.Nop())
	require.NoError(t, err)
	return &Exporter{
		Posts:     source,
		Renderer:  renderer,
		BaseURL:   "https://blog.example.com",
		UploadDir: uploadDir,
		Assets:    fstest.MapFS{"site.css": {Data: []byte("body{}")}, "editor.js": {Data: []byte("//")}},
		Robots:    []byte("User-agent: *\n"),
		Logger:    zerolog.Nop(),
	}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestExporter_Run(t *testing.T) {
	uploads := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "01hx.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, ".DS_Store"), []byte("x"), 0o644))

	source := staticPosts{list: []posts.Post{
		testPost(t, "first", "First Post", "Alpha"),
		testPost(t, "second", "Second <Post>", "Beta"),
	}}
	out := filepath.Join(t.TempDir(), "site")
	e := newExporter(t, source, uploads)

	res, err := e.Run(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, Result{Pages: 4, Assets: 1, Uploads: 1}, res)

	want := []string{
		"404.html",
		"feed.xml",
		"first/index.html",
		"index.html",
		"robots.txt",
		"second/index.html",
		"static/site.css",
		"uploads/01hx.png",
	}
	if diff := cmp.Diff(want, listFiles(t, out)); diff != "" {
		t.Fatalf("exported files mismatch (-want +got):\n%s", diff)
	}

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(index)))
	require.NoError(t, err)
	require.Equal(t, 2, doc.Find("li.post-summary").Length())
	require.Zero(t, doc.Find("nav.admin-nav").Length())

	page, err := os.ReadFile(filepath.Join(out, "second", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(page), "Second &lt;Post&gt;")
	require.NotContains(t, string(page), "edit-link")
	require.Contains(t, string(page), `<link rel="canonical" href="https://blog.example.com/second">`)

	feed, err := os.ReadFile(filepath.Join(out, "feed.xml"))
	require.NoError(t, err)
	require.Contains(t, string(feed), "https://blog.example.com/first")
}

func TestExporter_RunWithoutUploads(t *testing.T) {
	out := t.TempDir()
	e := newExporter(t, staticPosts{}, filepath.Join(t.TempDir(), "missing"))

	res, err := e.Run(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, 2, res.Pages)
	require.Zero(t, res.Uploads)

	doc, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(doc), "No posts yet.")
}

func TestExporter_RunErrors(t *testing.T) {
	t.Run("no output dir", func(t *testing.T) {
		_, err := newExporter(t, staticPosts{}, "").Run(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := newExporter(t, staticPosts{err: boom}, "").Run(context.Background(), t.TempDir())
		require.ErrorIs(t, err, boom)
	})

	t.Run("missing asset", func(t *testing.T) {
		e := newExporter(t, staticPosts{}, "")
		e.Assets = fstest.MapFS{}
		_, err := e.Run(context.Background(), t.TempDir())
		require.Error(t, err)
	})
}

func TestExporter_Overwrites(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "index.html"), []byte("stale"), 0o644))

	_, err := newExporter(t, staticPosts{list: []posts.Post{testPost(t, "fresh", "Fresh", "New")}}, "").Run(context.Background(), out)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	require.NotEqual(t, "stale", string(index))
	require.Contains(t, string(index), "Fresh")
}
