package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wryteon/wryteon/internal/validation"
	"gopkg.in/yaml.v3"
)

const minSecretLength = 32

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CORS           CORSConfig           `yaml:"cors"`
	Uploads        UploadConfig         `yaml:"uploads"`
	Site           SiteConfig           `yaml:"site"`
	AdminBootstrap AdminBootstrapConfig `yaml:"admin"`
	Jobs           JobsConfig           `yaml:"jobs"`
	Logging        LoggingConfig        `yaml:"logging"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Environment    string               `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MaxIdle        int    `yaml:"max_idle_connections"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiry     time.Duration `yaml:"jwt_expiry"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	CSRFKey       string        `yaml:"csrf_key"`
	secretDerived bool
}

type RateLimitConfig struct {
	PublicPerMinute int `yaml:"public_per_minute"`
	LoginPerMinute  int `yaml:"login_per_minute"`
	APIPerMinute    int `yaml:"api_per_minute"`
	AdminPerMinute  int `yaml:"admin_per_minute"`
	// TrustedProxyCIDRs lists proxies whose X-Forwarded-For is honoured.
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	AllowedOrigins  []string `yaml:"allowed_origins"`
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type AdminBootstrapConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

type JobsConfig struct {
	SessionCleanupInterval time.Duration `yaml:"session_cleanup_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// IsProduction reports whether the deployment is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Defaults returns the configuration used when neither a file nor the
// environment provides a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
			MaxIdle:        5,
		},
		Auth: AuthConfig{
			JWTExpiry:    24 * time.Hour,
			SessionTTL:   7 * 24 * time.Hour,
			CookieSecure: true,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 120,
			LoginPerMinute:  10,
			APIPerMinute:    300,
			AdminPerMinute:  0,
		},
		Uploads: UploadConfig{
			Dir:      "uploads",
			MaxBytes: 5 << 20,
		},
		Site: SiteConfig{
			Title:       "Wryteon",
			Description: "A small blog",
		},
		AdminBootstrap: AdminBootstrapConfig{
			Username: "admin",
			Password: "admin123",
			Email:    "admin@example.com",
		},
		Jobs: JobsConfig{
			SessionCleanupInterval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "wryteon",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

// Load reads configuration from the environment only.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads an optional YAML file and then applies environment
// overrides. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := finalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Database.MaxIdle)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpiry = getEnvHours("JWT_EXPIRY_HOURS", cfg.Auth.JWTExpiry)
	cfg.Auth.SessionTTL = getEnvHours("SESSION_TTL_HOURS", cfg.Auth.SessionTTL)
	cfg.Auth.CookieSecure = getEnvBool("SESSION_COOKIE_SECURE", cfg.Auth.CookieSecure)
	cfg.Auth.CSRFKey = getEnv("CSRF_KEY", cfg.Auth.CSRFKey)

	cfg.RateLimit.PublicPerMinute = getEnvInt("RATE_LIMIT_PUBLIC", cfg.RateLimit.PublicPerMinute)
	cfg.RateLimit.LoginPerMinute = getEnvInt("RATE_LIMIT_LOGIN", cfg.RateLimit.LoginPerMinute)
	cfg.RateLimit.APIPerMinute = getEnvInt("RATE_LIMIT_API", cfg.RateLimit.APIPerMinute)
	cfg.RateLimit.AdminPerMinute = getEnvInt("RATE_LIMIT_ADMIN", cfg.RateLimit.AdminPerMinute)
	if proxies := os.Getenv("RATE_LIMIT_TRUSTED_PROXIES"); proxies != "" {
		cfg.RateLimit.TrustedProxyCIDRs = splitList(proxies)
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}

	cfg.Uploads.Dir = getEnv("UPLOAD_DIR", cfg.Uploads.Dir)
	cfg.Uploads.MaxBytes = int64(getEnvInt("UPLOAD_MAX_BYTES", int(cfg.Uploads.MaxBytes)))

	cfg.Site.Title = getEnv("SITE_TITLE", cfg.Site.Title)
	cfg.Site.Description = getEnv("SITE_DESCRIPTION", cfg.Site.Description)

	cfg.AdminBootstrap.Username = getEnv("ADMIN_USERNAME", cfg.AdminBootstrap.Username)
	cfg.AdminBootstrap.Password = getEnv("ADMIN_PASSWORD", cfg.AdminBootstrap.Password)
	cfg.AdminBootstrap.Email = getEnv("ADMIN_EMAIL", cfg.AdminBootstrap.Email)

	cfg.Jobs.SessionCleanupInterval = getEnvDuration("JOB_SESSION_CLEANUP_INTERVAL", cfg.Jobs.SessionCleanupInterval)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("TRACING_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
}

// finalize validates required settings and fills development fallbacks.
func finalize(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if cfg.IsProduction() {
		if len(cfg.Auth.JWTSecret) < minSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minSecretLength)
		}
		if cfg.Auth.CSRFKey != "" && len(cfg.Auth.CSRFKey) < minSecretLength {
			return fmt.Errorf("CSRF_KEY must be at least %d bytes in production", minSecretLength)
		}
		cfg.CORS.AllowAllOrigins = false
	} else {
		if cfg.Auth.JWTSecret == "" {
			cfg.Auth.JWTSecret = "wryteon-development-secret-change-me"
			cfg.Auth.secretDerived = true
			log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
		}
		if len(cfg.CORS.AllowedOrigins) == 0 {
			cfg.CORS.AllowAllOrigins = true
		}
		// Local development runs over plain http.
		if os.Getenv("SESSION_COOKIE_SECURE") == "" && strings.HasPrefix(cfg.Server.BaseURL, "http://") {
			cfg.Auth.CookieSecure = false
		}
	}

	if err := validation.ValidateBaseURL(cfg.Server.BaseURL, "SERVER_BASE_URL", cfg.IsProduction()); err != nil {
		return err
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got %v", cfg.Tracing.SampleRate)
	}
	if cfg.Uploads.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// UsesDevelopmentSecret reports whether the built-in development JWT secret
// is in use.
func (a AuthConfig) UsesDevelopmentSecret() bool {
	return a.secretDerived
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvHours(key string, fallback time.Duration) time.Duration {
	hours := getEnvInt(key, -1)
	if hours <= 0 {
		return fallback
	}
	return time.Duration(hours) * time.Hour
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
