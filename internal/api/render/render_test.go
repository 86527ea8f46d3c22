package render

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
	"github.com/wryteon/wryteon/web"
)

var testSite = config.SiteConfig{Title: "Test Blog", Description: "Notes"}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(web.Templates(), testSite, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func samplePost(t *testing.T) posts.Post {
	t.Helper()
	doc, err := editorjs.ParseDocument([]byte(`{"blocks":[
		{"type":"header","data":{"text":"Intro","level":2}},
		{"type":"paragraph","data":{"text":"Hello <b>world</b><script>alert(1)</script>"}}
	]}`))
	require.NoError(t, err)
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return posts.Post{
		ID:          "hello-world",
		Title:       "Hello </script> World",
		Slug:        "hello-world",
		Blocks:      doc,
		Status:      posts.StatusPublished,
		CreatedAt:   published,
		UpdatedAt:   published.Add(time.Hour),
		PublishedAt: &published,
	}
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestPostPage(t *testing.T) {
	r := newTestRenderer(t)
	post := samplePost(t)

	page, err := PostPage(post, "https://blog.example/", testSite, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Execute(&buf, "post.html", page))
	doc := parse(t, buf.String())

	require.Equal(t, "Hello </script> World - Test Blog", doc.Find("title").Text())
	require.Equal(t, "Hello </script> World", doc.Find("article h1").Text())
	require.Equal(t, "Intro", doc.Find(".post-body h2").Text())
	require.Equal(t, "world", doc.Find(".post-body p b").Text())
	require.Zero(t, doc.Find(".post-body script").Length())
	require.Zero(t, doc.Find("a.edit-link").Length())
	require.Equal(t, "2024-03-01T12:00:00Z", doc.Find("article time").AttrOr("datetime", ""))
	require.Equal(t, "https://blog.example/hello-world", doc.Find(`link[rel="canonical"]`).AttrOr("href", ""))

	var ld map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc.Find(`script[type="application/ld+json"]`).Text()), &ld))
	require.Equal(t, "BlogPosting", ld["@type"])
	require.Equal(t, "Hello </script> World", ld["headline"])
	require.Equal(t, "2024-03-01T12:00:00Z", ld["datePublished"])
}

func TestPostPageEditLink(t *testing.T) {
	r := newTestRenderer(t)
	post := samplePost(t)
	post.Status = posts.StatusDraft
	post.PublishedAt = nil

	page, err := PostPage(post, "https://blog.example", testSite, true)
	require.NoError(t, err)
	page.User = &auth.User{ID: "u1", Username: "admin"}

	var buf bytes.Buffer
	require.NoError(t, r.Execute(&buf, "post.html", page))
	doc := parse(t, buf.String())

	require.Equal(t, "/admin/edit/hello-world", doc.Find("a.edit-link").AttrOr("href", ""))
	require.Equal(t, 1, doc.Find(".badge.draft").Length())
	require.Equal(t, 1, doc.Find("nav.admin-nav").Length())
}

func TestIndexPage(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.Execute(&buf, "index.html", Page{Data: IndexData{Posts: SummarizeAll([]posts.Post{samplePost(t)})}}))
	doc := parse(t, buf.String())

	require.Equal(t, "Test Blog", doc.Find("title").Text())
	link := doc.Find("a.post-link")
	require.Equal(t, "/hello-world", link.AttrOr("href", ""))
	require.Equal(t, "March 1, 2024", doc.Find(".post-summary time").Text())
	require.Contains(t, doc.Find(".excerpt").Text(), "Hello world")

	buf.Reset()
	require.NoError(t, r.Execute(&buf, "index.html", Page{Data: IndexData{}}))
	require.Equal(t, "No posts yet.", parse(t, buf.String()).Find(".empty").Text())
}

func TestEditorPage(t *testing.T) {
	r := newTestRenderer(t)
	post := samplePost(t)

	var buf bytes.Buffer
	require.NoError(t, r.Execute(&buf, "admin_editor.html", Page{
		Title:     "Edit post",
		CSRFToken: "tok",
		User:      &auth.User{Username: "admin"},
		Data:      NewEditorData(&post),
	}))
	doc := parse(t, buf.String())

	require.Equal(t, post.Title, doc.Find("#title-input").AttrOr("value", ""))
	require.Equal(t, "hello-world", doc.Find("#slug-input").AttrOr("value", ""))
	require.Equal(t, "published", doc.Find("#status-select option[selected]").AttrOr("value", ""))
	require.Equal(t, "2024-03-01T12:00", doc.Find("#published-at-input").AttrOr("value", ""))
	require.Equal(t, "tok", doc.Find(`meta[name="csrf-token"]`).AttrOr("content", ""))

	raw, ok := doc.Find("editor-component").Attr("data")
	require.True(t, ok)
	seeded := editorjs.DecodeInitialData(raw)
	require.Len(t, seeded.Blocks, 2)
	require.Equal(t, "header", seeded.Blocks[0].Type)
}

func TestNewEditorDataBlank(t *testing.T) {
	data := NewEditorData(nil)
	require.True(t, data.IsNew)
	require.Equal(t, "draft", data.Status)
	require.Equal(t, `{"blocks":[]}`, data.InitialData)
}

func TestDashboardAndErrorPages(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.Execute(&buf, "admin_dashboard.html", Page{User: &auth.User{Username: "admin"}, Data: DashboardData{PostCount: 1}}))
	doc := parse(t, buf.String())
	require.Equal(t, "Welcome to Wryteon Admin", doc.Find("h1").Text())
	require.Equal(t, "1 post", doc.Find(".post-count").Text())

	rec := httptest.NewRecorder()
	r.Error(rec, httptest.NewRequest(http.MethodGet, "/missing", nil), http.StatusNotFound, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "Not Found", parse(t, rec.Body.String()).Find(".message").Text())
}

func TestHTMLUnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)
	rec := httptest.NewRecorder()
	r.HTML(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "nope.html", Page{})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFeed(t *testing.T) {
	published := samplePost(t)
	draft := samplePost(t)
	draft.Slug = "draft"
	draft.Status = posts.StatusDraft

	out, err := Feed([]posts.Post{published, draft}, "https://blog.example", testSite)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "<?xml"))

	var parsed struct {
		Channel struct {
			Title string `xml:"title"`
			Items []struct {
				Title   string `xml:"title"`
				Link    string `xml:"link"`
				PubDate string `xml:"pubDate"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	require.NoError(t, xml.Unmarshal(out, &parsed))
	require.Equal(t, "Test Blog", parsed.Channel.Title)
	require.Len(t, parsed.Channel.Items, 1)
	require.Equal(t, "https://blog.example/hello-world", parsed.Channel.Items[0].Link)
	require.Equal(t, "Fri, 01 Mar 2024 12:00:00 +0000", parsed.Channel.Items[0].PubDate)
}

func TestPostURLEscapes(t *testing.T) {
	require.Equal(t, "https://blog.example/a%20b", PostURL("https://blog.example/", "a b"))
}
