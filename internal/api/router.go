package api

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/wryteon/wryteon/internal/api/handlers"
	"github.com/wryteon/wryteon/internal/api/middleware"
	"github.com/wryteon/wryteon/internal/api/render"
	"github.com/wryteon/wryteon/internal/audit"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/metrics"
	"github.com/wryteon/wryteon/web"
)

// AuthService is everything the router needs from auth.Service: the login
// flow for handlers and session/user lookups for the middleware.
type AuthService interface {
	handlers.AuthService
	middleware.SessionStore
}

// Dependencies are the services NewRouter wires into routes. Everything is
// constructed by the serve command; the router owns no connections.
type Dependencies struct {
	Config   config.Config
	Logger   zerolog.Logger
	Posts    handlers.PostService
	Auth     AuthService
	JWT      *auth.JWTManager
	Renderer *render.Renderer
	Audit    *audit.Logger
	Health   *handlers.HealthChecker
	Limiter  *middleware.RateLimiter
	CSRFKey  []byte
	Build    BuildInfo
}

// NewRouter builds the HTTP handler for the whole site.
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	secure := cfg.Auth.CookieSecure
	env := cfg.Environment
	baseURL := cfg.Server.BaseURL

	publicHandler := handlers.NewPublicHandler(d.Posts, d.Renderer, baseURL)
	authHandler := handlers.NewAuthHandler(d.Auth, d.JWT, d.Renderer, d.Audit, secure, env)
	adminHandler := handlers.NewAdminHandler(d.Posts, d.Renderer, d.Audit, baseURL, env)
	uploadHandler := handlers.NewUploadHandler(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, d.Audit)
	apiHandler := handlers.NewAPIHandler(d.Posts, d.Audit, baseURL, env)

	optionalSession := middleware.OptionalSession(d.Auth)
	requireSession := middleware.RequireSession(d.Auth, secure)
	csrfProtect := middleware.CSRFProtection(d.CSRFKey, secure, trustedOrigins(baseURL)...)
	jwtAuth := middleware.JWTAuth(d.JWT, d.Auth, env)

	publicTier := d.Limiter.Middleware
	loginTier := d.Limiter.Tier(middleware.TierLogin)
	adminTier := d.Limiter.Tier(middleware.TierAdmin)
	apiTier := d.Limiter.Tier(middleware.TierAPI)

	smallBody := middleware.RequestSize(middleware.DefaultMaxBodySize)
	editorBody := middleware.RequestSize(middleware.EditorMaxBodySize)
	uploadBody := middleware.UploadRequestSize(cfg.Uploads.MaxBytes)

	admin := func(h http.HandlerFunc) http.Handler {
		return adminTier(requireSession(csrfProtect(h)))
	}
	bearer := func(h http.HandlerFunc) http.Handler {
		return apiTier(jwtAuth(h))
	}

	mux := http.NewServeMux()

	// Probes and operational endpoints.
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", d.Health.Readyz())
	mux.Handle("GET /health", d.Health.Health())
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", VersionHandler(d.Build))

	// Public site.
	mux.Handle("GET /robots.txt", web.RobotsTxtHandler())
	mux.Handle("GET /static/", web.StaticHandler())
	mux.Handle("GET /uploads/{file}", publicTier(http.HandlerFunc(uploadHandler.Serve)))
	mux.Handle("GET /feed.xml", publicTier(http.HandlerFunc(publicHandler.Feed)))
	mux.Handle("GET /{$}", publicTier(optionalSession(http.HandlerFunc(publicHandler.Index))))
	mux.Handle("GET /{slug}", publicTier(optionalSession(http.HandlerFunc(publicHandler.Post))))

	// Login and logout.
	mux.Handle("GET /auth/login", csrfProtect(optionalSession(http.HandlerFunc(authHandler.LoginPage))))
	mux.Handle("POST /auth/login", loginTier(smallBody(csrfProtect(http.HandlerFunc(authHandler.Login)))))
	mux.Handle("GET /auth/logout", http.HandlerFunc(authHandler.Logout))

	// Admin pages and the editor's endpoints.
	mux.Handle("GET /admin", admin(adminHandler.Dashboard))
	mux.Handle("GET /admin/posts", admin(adminHandler.PostsList))
	mux.Handle("GET /admin/new-post", admin(adminHandler.NewPost))
	mux.Handle("GET /admin/edit/{id}", admin(adminHandler.EditPost))
	mux.Handle("POST /admin/api/posts", editorBody(admin(adminHandler.SavePost)))
	mux.Handle("DELETE /admin/api/posts/{id}", admin(adminHandler.DeletePost))
	mux.Handle("POST /admin/api/preview", editorBody(admin(adminHandler.Preview)))
	mux.Handle("POST /api/upload", uploadBody(admin(uploadHandler.Upload)))
	mux.Handle("POST /api/fetchUrl", smallBody(admin(uploadHandler.FetchURL)))

	// Bearer-token JSON API.
	mux.Handle("/api/v1/openapi.json", methodMux(map[string]http.Handler{
		http.MethodGet:  OpenAPIHandler(),
		http.MethodHead: OpenAPIHandler(),
	}))
	mux.Handle("POST /api/v1/auth/token", loginTier(smallBody(http.HandlerFunc(authHandler.Token))))
	mux.Handle("GET /api/v1/posts", bearer(apiHandler.List))
	mux.Handle("PUT /api/v1/posts", editorBody(bearer(apiHandler.Save)))
	mux.Handle("GET /api/v1/posts/{slug}", bearer(apiHandler.Get))
	mux.Handle("DELETE /api/v1/posts/{id}", bearer(apiHandler.Delete))

	// CORS sits in front of the mux so preflight requests, which match no
	// method pattern, are answered before routing.
	withCORS := middleware.CORS(cfg.CORS, d.Logger)(mux)
	routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/v1/") {
			withCORS.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	var handler http.Handler = routed
	handler = middleware.SecurityHeaders(cfg.IsProduction())(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(d.Logger)(handler)
	handler = middleware.CorrelationID(d.Logger)(handler)
	handler = middleware.Tracing(handler)
	return handler
}

// trustedOrigins lets the CSRF referer check accept the public host when
// TLS terminates at a proxy in front of the server.
func trustedOrigins(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
