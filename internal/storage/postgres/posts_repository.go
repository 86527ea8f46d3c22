package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
)

type PostRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ posts.Repository = (*PostRepository)(nil)

const postColumns = `id, title, slug, blocks, status, created_at, updated_at, published_at`

func (r *PostRepository) GetByID(ctx context.Context, id string) (*posts.Post, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	return scanPost(row)
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*posts.Post, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = $1 LIMIT 1`, slug)
	return scanPost(row)
}

func (r *PostRepository) Insert(ctx context.Context, post posts.Post) error {
	blocks, err := json.Marshal(post.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	_, err = r.queryer().Exec(ctx, `
INSERT INTO posts (id, title, slug, blocks, status, created_at, updated_at, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, post.ID, post.Title, post.Slug, blocks, string(post.Status), post.CreatedAt, post.UpdatedAt, post.PublishedAt)
	if err != nil {
		return mapPostError("insert post", err)
	}
	return nil
}

func (r *PostRepository) Update(ctx context.Context, post posts.Post) error {
	blocks, err := json.Marshal(post.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	tag, err := r.queryer().Exec(ctx, `
UPDATE posts
   SET title = $2, slug = $3, blocks = $4, status = $5, updated_at = $6, published_at = $7
 WHERE id = $1
`, post.ID, post.Title, post.Slug, blocks, string(post.Status), post.UpdatedAt, post.PublishedAt)
	if err != nil {
		return mapPostError("update post", err)
	}
	if tag.RowsAffected() == 0 {
		return posts.ErrNotFound
	}
	return nil
}

func (r *PostRepository) ListPublished(ctx context.Context) ([]posts.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts
 WHERE status = 'published'
 ORDER BY published_at DESC NULLS LAST, updated_at DESC`)
}

func (r *PostRepository) ListAll(ctx context.Context) ([]posts.Post, error) {
	return r.list(ctx, `SELECT `+postColumns+` FROM posts ORDER BY updated_at DESC`)
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.queryer().QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostRepository) WithTx(ctx context.Context, fn func(context.Context, posts.Repository) error) error {
	return withTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		return fn(ctx, &PostRepository{pool: r.pool, tx: tx})
	})
}

func (r *PostRepository) list(ctx context.Context, query string) ([]posts.Post, error) {
	rows, err := r.queryer().Query(ctx, query)
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

func (r *PostRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanPost(row pgx.Row) (*posts.Post, error) {
	var (
		post        posts.Post
		blocks      []byte
		status      string
		publishedAt *time.Time
	)
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Slug,
		&blocks,
		&status,
		&post.CreatedAt,
		&post.UpdatedAt,
		&publishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, posts.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	doc, err := editorjs.ParseDocument(blocks)
	if err != nil {
		return nil, fmt.Errorf("decode blocks of post %s: %w", post.ID, err)
	}
	post.Blocks = doc
	post.Status = posts.Status(status)
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	if publishedAt != nil {
		t := publishedAt.UTC()
		post.PublishedAt = &t
	}
	return &post, nil
}

func mapPostError(op string, err error) error {
	if uniqueConstraint(err) == "posts_slug_key" {
		return posts.ErrSlugTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}
