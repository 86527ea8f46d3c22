package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/wryteon/wryteon/internal/editorjs"
	"github.com/wryteon/wryteon/internal/metrics"
	"github.com/wryteon/wryteon/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/wryteon/wryteon/internal/domain/posts"

// Service implements the post operations on top of a Repository.
type Service struct {
	repo      Repository
	logger    zerolog.Logger
	validator *validator.Validate
	now       func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "posts").Logger(),
		validator: newValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts or updates a post. The post id is payload.ID, or the slug
// when no id is given. A post with that id is updated in place; otherwise a
// new post is created with matching created and updated timestamps.
func (s *Service) Save(ctx context.Context, payload SavePayload) (*Post, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "posts.Save")
	defer span.End()

	payload.ID = strings.TrimSpace(payload.ID)
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Slug = strings.TrimSpace(payload.Slug)
	payload.Status = Status(strings.TrimSpace(string(payload.Status)))

	if err := Validate(s.validator, payload); err != nil {
		metrics.PostRejectionsTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	id := payload.ID
	if id == "" {
		id = payload.Slug
	}
	now := s.now()
	if payload.Blocks.Blocks == nil {
		payload.Blocks.Blocks = []editorjs.Block{}
	}

	post := Post{
		ID:          id,
		Title:       payload.Title,
		Slug:        payload.Slug,
		Blocks:      payload.Blocks,
		Status:      payload.Status,
		UpdatedAt:   now,
		PublishedAt: ResolvePublishedAt(payload.Status, payload.PublishedAt, now),
	}

	logger := s.logger.With().
		Str("id", id).
		Str("slug", post.Slug).
		Str("status", string(post.Status)).
		Int("block_count", len(post.Blocks.Blocks)).
		Int("word_count", editorjs.DocumentStats(post.Blocks).Words).
		Logger()

	var op string
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if other, err := repo.GetBySlug(ctx, post.Slug); err == nil && other.ID != id {
			return ErrSlugTaken
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check slug: %w", err)
		}

		existing, err := repo.GetByID(ctx, id)
		switch {
		case err == nil:
			op = "update"
			post.CreatedAt = existing.CreatedAt
			return repo.Update(ctx, post)
		case errors.Is(err, ErrNotFound):
			op = "insert"
			post.CreatedAt = now
			return repo.Insert(ctx, post)
		default:
			return fmt.Errorf("load post: %w", err)
		}
	})
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			metrics.PostRejectionsTotal.WithLabelValues("slug_taken").Inc()
		} else {
			logger.Error().Err(err).Msg("savePost failed")
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("post.id", id), attribute.String("post.operation", op))
	metrics.PostsSavedTotal.WithLabelValues(op, string(post.Status)).Inc()
	logger.Info().Msg("savePost:" + op)
	return &post, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*Post, error) {
	post, err := s.repo.GetBySlug(ctx, slug)
	s.logger.Debug().Str("slug", slug).Bool("found", err == nil).Msg("getPostBySlug")
	return post, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*Post, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPublished returns published posts, newest publication first.
func (s *Service) ListPublished(ctx context.Context) ([]Post, error) {
	list, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("count", len(list)).Msg("getPublishedPosts")
	return list, nil
}

// ListAll returns every post, most recently updated first.
func (s *Service) ListAll(ctx context.Context) ([]Post, error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("count", len(list)).Msg("getAllPosts")
	return list, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().Int("count", count).Msg("getPostCount")
	return count, nil
}

// Delete removes a post and reports whether it existed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	s.logger.Debug().Str("id", id).Msg("deletePost:attempt")
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		s.logger.Info().Str("id", id).Msg("deletePost:not-found")
		return false, nil
	}
	metrics.PostsDeletedTotal.Inc()
	s.logger.Info().Str("id", id).Msg("deletePost:deleted")
	return true, nil
}
