// Package posts manages blog posts: validation, slug handling, publish
// timestamps and the insert-or-update save flow used by the admin editor and
// the JSON API.
package posts

import (
	"context"
	"errors"
	"time"

	"github.com/wryteon/wryteon/internal/editorjs"
)

var (
	ErrNotFound  = errors.New("post not found")
	ErrSlugTaken = errors.New("slug is already used by another post")
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Post is a stored blog post.
type Post struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Blocks      editorjs.Document `json:"blocks"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	PublishedAt *time.Time        `json:"publishedAt"`
}

// IsPublished reports whether the post is visible to anonymous readers.
func (p Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// SavePayload is what the editor submits. ID is optional and falls back to
// the slug. PublishedAt is only consulted for published posts.
type SavePayload struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title" validate:"required,max=300"`
	Slug        string            `json:"slug" validate:"required,max=200,slug"`
	Blocks      editorjs.Document `json:"blocks"`
	Status      Status            `json:"status" validate:"required,oneof=draft published"`
	PublishedAt string            `json:"publishedAt,omitempty"`
}

// Repository is the persistence contract for posts. Lookups return
// ErrNotFound when nothing matches; Insert and Update return ErrSlugTaken on
// a slug conflict.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Post, error)
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	Insert(ctx context.Context, post Post) error
	Update(ctx context.Context, post Post) error
	ListPublished(ctx context.Context) ([]Post, error)
	ListAll(ctx context.Context) ([]Post, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) (bool, error)

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
