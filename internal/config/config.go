package config

import (
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/galvanai/portal/internal/media"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"` // development, production

	// REST backend
	BackendURL string `env:"BACKEND_URL"`
	// BackendPublicURL is where browsers fetch backend-hosted pictures.
	// Defaults to BackendURL.
	BackendPublicURL string        `env:"BACKEND_PUBLIC_URL"`
	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionStore  string        `env:"SESSION_STORE" envDefault:"memory"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Limits
	AuthRateLimitPerMinute int   `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	AuthRateLimitBurst     int   `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`
	MaxUploadSizeMB        int64 `env:"MAX_UPLOAD_SIZE_MB" envDefault:"8"`

	// Tracing
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// Load reads .env (if present), the environment, then flags in args.
func Load(args []string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	fs := flag.NewFlagSet("portal", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Server port")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development, production)")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "REST backend base URL")
	fs.StringVar(&cfg.SessionStore, "session-store", cfg.SessionStore, "Session store (memory, sqlite, postgres, redis)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.BackendPublicURL == "" {
		cfg.BackendPublicURL = cfg.BackendURL
	}
	if cfg.SessionStore == StoreSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "file:portal.db?_pragma=journal_mode(WAL)"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	for key, raw := range map[string]string{"BACKEND_URL": c.BackendURL, "BACKEND_PUBLIC_URL": c.BackendPublicURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s must be an absolute http(s) URL", key)
		}
	}

	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	switch c.SessionStore {
	case StoreMemory, StoreRedis:
	case StoreSQLite, StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for SESSION_STORE=%s", c.SessionStore)
		}
	default:
		return fmt.Errorf("SESSION_STORE %q is not one of memory, sqlite, postgres, redis", c.SessionStore)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.AuthRateLimitPerMinute <= 0 || c.AuthRateLimitBurst <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_PER_MINUTE and AUTH_RATE_LIMIT_BURST must be positive")
	}
	if c.MaxUploadSizeMB <= 0 || c.MaxUploadBytes() < minUploadBytes {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be at least %d", minUploadBytes>>20)
	}
	return nil
}

// minUploadBytes fits the largest accepted picture plus the other form fields.
const minUploadBytes = media.MaxPictureSize + 1<<20

// MaxUploadBytes is the request body limit for forms with a picture.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
