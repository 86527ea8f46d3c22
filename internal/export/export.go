// Package export writes the public side of the blog as a static site: the
// front page, one page per published post, the RSS feed, robots.txt, the
// stylesheet and every uploaded image. Each file is written atomically so a
// web server pointed at the output never serves a half-written page.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"
	"github.com/rs/zerolog"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel page rendering.
const DefaultConcurrency = 4

// publicAssets are the files under /static/ that public pages reference.
// The admin scripts are not exported.
var publicAssets = []string{"site.css"}

// PostSource lists the posts to export.
type PostSource interface {
	ListPublished(ctx context.Context) ([]posts.Post, error)
}

// Exporter renders pages with the same templates the server uses.
type Exporter struct {
	Posts       PostSource
	Renderer    *render.Renderer
	BaseURL     string
	UploadDir   string
	Assets      fs.FS
	Robots      []byte
	Concurrency int
	Logger      zerolog.Logger
}

// Result counts what an export wrote.
type Result struct {
	Pages   int
	Assets  int
	Uploads int
}

// Run writes the site into outDir, creating it when needed. Existing files
// are overwritten; files for posts that no longer exist are left alone.
func (e *Exporter) Run(ctx context.Context, outDir string) (Result, error) {
	var res Result
	if outDir == "" {
		return res, errors.New("export: output directory required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}

	list, err := e.Posts.ListPublished(ctx)
	if err != nil {
		return res, fmt.Errorf("list published posts: %w", err)
	}

	var pages atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	limit := e.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	g.Go(func() error {
		if err := e.writePage(outDir, "index.html", "index.html", render.Page{
			Description: e.Renderer.Site().Description,
			Canonical:   e.BaseURL,
			Data:        render.IndexData{Posts: render.SummarizeAll(list)},
		}); err != nil {
			return err
		}
		pages.Add(1)
		return nil
	})
	g.Go(func() error {
		if err := e.writePage(outDir, "404.html", "error.html", render.Page{
			Title: http.StatusText(http.StatusNotFound),
			Data:  render.ErrorData{Status: http.StatusNotFound, Message: http.StatusText(http.StatusNotFound)},
		}); err != nil {
			return err
		}
		pages.Add(1)
		return nil
	})

	for _, post := range list {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := render.PostPage(post, e.BaseURL, e.Renderer.Site(), false)
			if err != nil {
				return fmt.Errorf("prepare %s: %w", post.Slug, err)
			}
			if err := e.writePage(outDir, filepath.Join(post.Slug, "index.html"), "post.html", page); err != nil {
				return err
			}
			pages.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Pages = int(pages.Load())

	feed, err := render.Feed(list, e.BaseURL, e.Renderer.Site())
	if err != nil {
		return res, fmt.Errorf("render feed: %w", err)
	}
	if err := writeFile(filepath.Join(outDir, "feed.xml"), feed); err != nil {
		return res, err
	}
	if len(e.Robots) > 0 {
		if err := writeFile(filepath.Join(outDir, "robots.txt"), e.Robots); err != nil {
			return res, err
		}
	}

	if res.Assets, err = e.copyAssets(outDir); err != nil {
		return res, err
	}
	if res.Uploads, err = e.copyUploads(outDir); err != nil {
		return res, err
	}

	e.Logger.Info().
		Int("pages", res.Pages).
		Int("assets", res.Assets).
		Int("uploads", res.Uploads).
		Str("dir", outDir).
		Msg("static export complete")
	return res, nil
}

func (e *Exporter) writePage(outDir, rel, template string, page render.Page) error {
	var buf bytes.Buffer
	if err := e.Renderer.Execute(&buf, template, page); err != nil {
		return fmt.Errorf("render %s: %w", rel, err)
	}
	if err := writeFile(filepath.Join(outDir, rel), buf.Bytes()); err != nil {
		return err
	}
	metrics.ExportPagesTotal.Inc()
	e.Logger.Debug().Str("page", rel).Msg("page written")
	return nil
}

func (e *Exporter) copyAssets(outDir string) (int, error) {
	if e.Assets == nil {
		return 0, nil
	}
	copied := 0
	for _, name := range publicAssets {
		data, err := fs.ReadFile(e.Assets, name)
		if err != nil {
			return copied, fmt.Errorf("read asset %s: %w", name, err)
		}
		if err := writeFile(filepath.Join(outDir, "static", name), data); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

// copyUploads mirrors the flat upload directory. A missing directory means
// nothing was uploaded yet.
func (e *Exporter) copyUploads(outDir string) (int, error) {
	if e.UploadDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(e.UploadDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		src, err := os.Open(filepath.Join(e.UploadDir, entry.Name()))
		if err != nil {
			return copied, fmt.Errorf("open upload %s: %w", entry.Name(), err)
		}
		dst := filepath.Join(outDir, "uploads", entry.Name())
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			_ = src.Close()
			return copied, fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		err = natomic.WriteFile(dst, src)
		_ = src.Close()
		if err != nil {
			return copied, fmt.Errorf("write %s: %w", dst, err)
		}
		copied++
	}
	return copied, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := natomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
