package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wryteon/wryteon/internal/api"
	"github.com/wryteon/wryteon/internal/api/handlers"
	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/jobs"
	"github.com/wryteon/wryteon/internal/metrics"
	"github.com/wryteon/wryteon/internal/storage"
	"github.com/wryteon/wryteon/internal/storage/postgres"
	"github.com/wryteon/wryteon/internal/storage/sqlite"
	"github.com/wryteon/wryteon/internal/telemetry"
	"github.com/wryteon/wryteon/web"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the blog HTTP server",
	Long: `Start the blog HTTP server.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending migrations and bootstrap the admin user
- Serve the public site, the admin editor and the JSON API
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with a local SQLite database
  DATABASE_URL=sqlite:blog.db wryteon serve

  # Start on a specific host and port
  wryteon serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  wryteon serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting wryteon")

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	repo, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	metrics.Init(Version, GitCommit, BuildDate, repo.Backend())

	// Collect pool statistics every 15 seconds.
	poolStats := poolStatsFor(repo)
	dbCollector := metrics.NewDBCollector(repo.Backend(), poolStats)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	postService := posts.NewService(repo.Posts(), logger)
	authService := newAuthService(cfg, repo, logger)

	if cfg.IsProduction() && cfg.AdminBootstrap.Password == config.Defaults().AdminBootstrap.Password {
		logger.Warn().Msg("ADMIN_PASSWORD is the default; skipping admin bootstrap in production")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		if _, err := bootstrapAdminUser(ctx, cfg, authService, logger); err != nil {
			logger.Error().Err(err).Msg("admin bootstrap failed")
		}
		cancel()
	}

	jwtKey, csrfKey, err := deriveKeys(cfg.Auth)
	if err != nil {
		return err
	}
	if cfg.Auth.UsesDevelopmentSecret() {
		logger.Warn().Msg("signing tokens with the development secret")
	}

	renderer, err := render.New(web.Templates(), cfg.Site, logger)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()

	// Background jobs need PostgreSQL. SQLite deployments clean sessions
	// with the sessions cleanup command instead.
	var jobLister handlers.JobLister
	riverClient, err := newRiverClient(cfg, repo, authService, logger)
	if err != nil {
		return err
	}
	if riverClient != nil {
		riverCtx, riverCancel := context.WithCancel(context.Background())
		defer riverCancel()
		if err := riverClient.Start(riverCtx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Msg("river background job workers started")
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := riverClient.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("river workers stopped")
			}
		}()
		jobLister = riverClient
	}

	router := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Posts:    postService,
		Auth:     authService,
		JWT:      auth.NewJWTManager(jwtKey, cfg.Auth.JWTExpiry, cfg.Server.BaseURL),
		Renderer: renderer,
		Audit:    audit.NewLogger(logger),
		Health:   handlers.NewHealthChecker(repo, repo.Backend(), poolStats, jobLister, cfg.Uploads.Dir, Version, GitCommit),
		Limiter:  limiter,
		CSRFKey:  csrfKey,
		Build:    buildInfo(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second, // uploads need longer than plain pages
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	logger.Info().Str("addr", server.Addr).Str("base_url", cfg.Server.BaseURL).Msg("listening")
	return gracefulShutdown(server, startServer(server), logger)
}

// startServer runs ListenAndServe in the background. The returned channel
// receives the error if the server stops for any reason other than Shutdown.
func startServer(server *http.Server) <-chan error {
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	return serveErr
}

// deriveKeys returns the JWT signing key and the CSRF key. Both come from
// HKDF so the raw secrets are never used directly; CSRF_KEY, when set,
// replaces JWT_SECRET as the CSRF master.
func deriveKeys(cfg config.AuthConfig) ([]byte, []byte, error) {
	jwtKey, err := auth.DeriveAPIJWTKey([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, nil, fmt.Errorf("derive jwt key: %w", err)
	}
	csrfMaster := cfg.CSRFKey
	if csrfMaster == "" {
		csrfMaster = cfg.JWTSecret
	}
	csrfKey, err := auth.DeriveCSRFKey([]byte(csrfMaster))
	if err != nil {
		return nil, nil, fmt.Errorf("derive csrf key: %w", err)
	}
	return jwtKey, csrfKey, nil
}

func poolStatsFor(repo storage.Repository) metrics.StatsSource {
	switch r := repo.(type) {
	case *postgres.Repository:
		return metrics.PgxPoolStats(r.Pool())
	case *sqlite.Repository:
		return metrics.SQLDBStats(r.DB())
	default:
		return nil
	}
}

// newRiverClient returns nil for backends without a job queue.
func newRiverClient(cfg config.Config, repo storage.Repository, sessions jobs.SessionCleaner, logger zerolog.Logger) (*river.Client[pgx.Tx], error) {
	pg, ok := repo.(*postgres.Repository)
	if !ok {
		logger.Info().Str("backend", repo.Backend()).Msg("job queue disabled for this backend")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := postgres.MigrateRiver(ctx, pg.Pool()); err != nil {
		return nil, err
	}

	// River logs through slog. Each record becomes the message of a zerolog
	// line, which already carries the timestamp.
	jobLogger := slog.New(slog.NewTextHandler(logger.With().Str("component", "river").Logger(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	client, err := jobs.NewClient(
		pg.Pool(),
		jobs.NewWorkers(sessions, jobLogger),
		jobLogger,
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(cfg.Jobs.SessionCleanupInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

func gracefulShutdown(server *http.Server, serveErr <-chan error, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-serveErr:
		if ok {
			logger.Error().Err(err).Msg("http server error")
			return fmt.Errorf("http server: %w", err)
		}
	case <-stop:
	}
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
