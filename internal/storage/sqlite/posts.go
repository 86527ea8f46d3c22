package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
)

type PostRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ posts.Repository = (*PostRepository)(nil)

const postColumns = `id, title, slug, blocks, status, created_at, updated_at, published_at`

func (r *PostRepository) GetByID(ctx context.Context, id string) (*posts.Post, error) {
	row := pick(r.db, r.tx).QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*posts.Post, error) {
	row := pick(r.db, r.tx).QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ? LIMIT 1`, slug)
	return scanPost(row)
}

func (r *PostRepository) Insert(ctx context.Context, post posts.Post) error {
	blocks, err := json.Marshal(post.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	_, err = pick(r.db, r.tx).ExecContext(ctx, `
INSERT INTO posts (id, title, slug, blocks, status, created_at, updated_at, published_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, post.ID, post.Title, post.Slug, string(blocks), string(post.Status),
		formatTime(post.CreatedAt), formatTime(post.UpdatedAt), formatTimePtr(post.PublishedAt))
	if err != nil {
		if isUniqueViolation(err, "posts.slug") {
			return posts.ErrSlugTaken
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Update(ctx context.Context, post posts.Post) error {
	blocks, err := json.Marshal(post.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	res, err := pick(r.db, r.tx).ExecContext(ctx, `
UPDATE posts
   SET title = ?, slug = ?, blocks = ?, status = ?, updated_at = ?, published_at = ?
 WHERE id = ?
`, post.Title, post.Slug, string(blocks), string(post.Status),
		formatTime(post.UpdatedAt), formatTimePtr(post.PublishedAt), post.ID)
	if err != nil {
		if isUniqueViolation(err, "posts.slug") {
			return posts.ErrSlugTaken
		}
		return fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return posts.ErrNotFound
	}
	return nil
}

func (r *PostRepository) ListPublished(ctx context.Context) ([]posts.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts
 WHERE status = 'published'
 ORDER BY published_at IS NULL, published_at DESC, updated_at DESC`)
}

func (r *PostRepository) ListAll(ctx context.Context) ([]posts.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY updated_at DESC`)
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := pick(r.db, r.tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := pick(r.db, r.tx).ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return n > 0, nil
}

func (r *PostRepository) WithTx(ctx context.Context, fn func(context.Context, posts.Repository) error) error {
	return withTx(ctx, r.db, r.tx, func(tx *sql.Tx) error {
		return fn(ctx, &PostRepository{db: r.db, tx: tx})
	})
}

func (r *PostRepository) list(ctx context.Context, query string) ([]posts.Post, error) {
	rows, err := pick(r.db, r.tx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]posts.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*posts.Post, error) {
	var (
		post                 posts.Post
		blocks, status       string
		createdAt, updatedAt string
		publishedAt          sql.NullString
	)
	if err := row.Scan(&post.ID, &post.Title, &post.Slug, &blocks, &status, &createdAt, &updatedAt, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, posts.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	doc, err := editorjs.ParseDocument([]byte(blocks))
	if err != nil {
		return nil, fmt.Errorf("decode blocks of post %s: %w", post.ID, err)
	}
	post.Blocks = doc
	post.Status = posts.Status(status)

	if post.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if post.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t, err := parseTime(publishedAt.String)
		if err != nil {
			return nil, err
		}
		post.PublishedAt = &t
	}
	return &post, nil
}
