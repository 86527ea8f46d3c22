package handlers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
	"github.com/wryteon/wryteon/web"
)

const testBaseURL = "https://blog.example.com"

var errStoreDown = errors.New("store down")

// fakePosts is an in-memory PostService with the same slug and
// insert-or-update rules as posts.Service.
type fakePosts struct {
	mu    sync.Mutex
	posts map[string]posts.Post
	err   error
	now   time.Time
}

func newFakePosts(list ...posts.Post) *fakePosts {
	f := &fakePosts{
		posts: map[string]posts.Post{},
		now:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, p := range list {
		f.posts[p.ID] = p
	}
	return f
}

func (f *fakePosts) Save(ctx context.Context, payload posts.SavePayload) (*posts.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var invalid posts.ValidationErrors
	if strings.TrimSpace(payload.Title) == "" {
		invalid = append(invalid, posts.ValidationError{Field: "title", Message: "is required"})
	}
	if payload.Slug == "" {
		invalid = append(invalid, posts.ValidationError{Field: "slug", Message: "is required"})
	}
	if len(invalid) > 0 {
		return nil, invalid
	}

	id := payload.ID
	if id == "" {
		id = payload.Slug
	}
	for _, other := range f.posts {
		if other.Slug == payload.Slug && other.ID != id {
			return nil, posts.ErrSlugTaken
		}
	}

	status := payload.Status
	if status == "" {
		status = posts.StatusDraft
	}
	post, exists := f.posts[id]
	if !exists {
		post = posts.Post{ID: id, CreatedAt: f.now}
		post.UpdatedAt = f.now
	} else {
		post.UpdatedAt = f.now.Add(time.Minute)
	}
	post.Title = payload.Title
	post.Slug = payload.Slug
	post.Blocks = payload.Blocks
	post.Status = status
	if status == posts.StatusPublished && post.PublishedAt == nil {
		published := f.now
		post.PublishedAt = &published
	}
	f.posts[id] = post
	return &post, nil
}

func (f *fakePosts) GetBySlug(ctx context.Context, slug string) (*posts.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.posts {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, posts.ErrNotFound
}

func (f *fakePosts) GetByID(ctx context.Context, id string) (*posts.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, posts.ErrNotFound
	}
	return &p, nil
}

func (f *fakePosts) sorted(onlyPublished bool) []posts.Post {
	out := make([]posts.Post, 0, len(f.posts))
	for _, p := range f.posts {
		if onlyPublished && !p.IsPublished() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakePosts) ListPublished(ctx context.Context) ([]posts.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.sorted(true), nil
}

func (f *fakePosts) ListAll(ctx context.Context) ([]posts.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.sorted(false), nil
}

func (f *fakePosts) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return len(f.posts), nil
}

func (f *fakePosts) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.posts[id]; !ok {
		return false, nil
	}
	delete(f.posts, id)
	return true, nil
}

// fakeAuth accepts admin/secret and records deleted session tokens.
type fakeAuth struct {
	user    auth.User
	deleted []string
	err     error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{user: auth.User{ID: "u1", Username: "admin", Email: "admin@example.com"}}
}

func (f *fakeAuth) VerifyLogin(ctx context.Context, username, password string) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if username != f.user.Username || password != "secret" {
		return nil, auth.ErrInvalidCredentials
	}
	user := f.user
	return &user, nil
}

func (f *fakeAuth) CreateSession(ctx context.Context, userID string) (string, error) {
	return "token-for-" + userID, nil
}

func (f *fakeAuth) DeleteSession(ctx context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}

func (f *fakeAuth) SessionTTL() time.Duration {
	return 24 * time.Hour
}

func newTestRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(web.Templates(), config.SiteConfig{Title: "Test Blog", Description: "Notes"}, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func nopAudit() *audit.Logger {
	return audit.NewLogger(zerolog.Nop())
}

func testDocument(t *testing.T, raw string) editorjs.Document {
	t.Helper()
	doc, err := editorjs.ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func publishedPost(t *testing.T, id, title string) posts.Post {
	t.Helper()
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return posts.Post{
		ID:          id,
		Title:       title,
		Slug:        id,
		Blocks:      testDocument(t, `{"blocks":[{"type":"paragraph","data":{"text":"Body of `+id+`"}}]}`),
		Status:      posts.StatusPublished,
		CreatedAt:   published,
		UpdatedAt:   published,
		PublishedAt: &published,
	}
}

func draftPost(t *testing.T, id, title string) posts.Post {
	t.Helper()
	created := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	return posts.Post{
		ID:        id,
		Title:     title,
		Slug:      id,
		Blocks:    testDocument(t, `{"blocks":[{"type":"paragraph","data":{"text":"Work in progress"}}]}`),
		Status:    posts.StatusDraft,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}
