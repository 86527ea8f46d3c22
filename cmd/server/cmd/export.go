package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/export"
	"github.com/wryteon/wryteon/web"
)

var (
	exportOut         string
	exportBaseURL     string
	exportConcurrency int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the public site as static HTML",
	Long: `Render the front page, every published post, the RSS feed, robots.txt,
the stylesheet and all uploaded images into a directory that any static
web server can host. Drafts and the admin area are not exported.

Examples:
  wryteon export --out ./public

  # Links in the feed and canonical tags point at the static host
  wryteon export --out ./public --base-url https://blog.example.com`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "public", "output directory")
	exportCmd.Flags().StringVar(&exportBaseURL, "base-url", "", "public URL of the exported site (default: SERVER_BASE_URL)")
	exportCmd.Flags().IntVar(&exportConcurrency, "concurrency", export.DefaultConcurrency, "pages rendered in parallel")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)

	baseURL := cfg.Server.BaseURL
	if exportBaseURL != "" {
		baseURL = strings.TrimRight(exportBaseURL, "/")
	}

	repo, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	renderer, err := render.New(web.Templates(), cfg.Site, logger)
	if err != nil {
		return err
	}

	exporter := &export.Exporter{
		Posts:       posts.NewService(repo.Posts(), logger),
		Renderer:    renderer,
		BaseURL:     baseURL,
		UploadDir:   cfg.Uploads.Dir,
		Assets:      web.Static(),
		Robots:      web.RobotsTxt(),
		Concurrency: exportConcurrency,
		Logger:      logger,
	}
	res, err := exporter.Run(cmd.Context(), exportOut)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pages, %d assets and %d uploads to %s\n",
		res.Pages, res.Assets, res.Uploads, exportOut)
	return nil
}
