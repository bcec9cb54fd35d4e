package config

import (
	"strings"
	"testing"
	"time"
)

var secret = strings.Repeat("x", 32)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", "http://localhost:5000")
	t.Setenv("SESSION_SECRET", secret)
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || !cfg.IsDevelopment() {
		t.Errorf("server defaults = %q %q", cfg.Port, cfg.Env)
	}
	if cfg.SessionStore != StoreMemory || cfg.SessionTTL != 24*time.Hour {
		t.Errorf("session defaults = %q %v", cfg.SessionStore, cfg.SessionTTL)
	}
	if cfg.BackendPublicURL != "http://localhost:5000" {
		t.Errorf("public url = %q", cfg.BackendPublicURL)
	}
	if cfg.BackendTimeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.BackendTimeout)
	}
	if cfg.MaxUploadBytes() != 8<<20 {
		t.Errorf("upload limit = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	setBase(t)
	t.Setenv("PORT", "9000")
	cfg, err := Load([]string{"-port", "9100", "-env", "production"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9100" || !cfg.IsProduction() {
		t.Errorf("got %q %q", cfg.Port, cfg.Env)
	}
}

func TestLoadParsesTypedValues(t *testing.T) {
	setBase(t)
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("SECURE_COOKIES", "true")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisDB != 3 || cfg.SessionTTL != 90*time.Minute || !cfg.SecureCookies {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadSQLiteDefaultsDSN(t *testing.T) {
	setBase(t)
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "file:") {
		t.Errorf("dsn = %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsBadTypes(t *testing.T) {
	setBase(t)
	t.Setenv("SESSION_TTL", "forever")
	if _, err := Load(nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			BackendURL:             "http://localhost:5000",
			BackendPublicURL:       "http://localhost:5000",
			SessionSecret:          secret,
			SessionStore:           StoreMemory,
			SessionTTL:             time.Hour,
			AuthRateLimitPerMinute: 10,
			AuthRateLimitBurst:     5,
			MaxUploadSizeMB:        8,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing backend", func(c *Config) { c.BackendURL = "" }, "BACKEND_URL is required"},
		{"relative backend", func(c *Config) { c.BackendURL = "localhost:5000" }, "BACKEND_URL must be"},
		{"bad public url", func(c *Config) { c.BackendPublicURL = "/uploads" }, "BACKEND_PUBLIC_URL must be"},
		{"short secret", func(c *Config) { c.SessionSecret = "short" }, "SESSION_SECRET"},
		{"unknown store", func(c *Config) { c.SessionStore = "etcd" }, "SESSION_STORE"},
		{"postgres without dsn", func(c *Config) { c.SessionStore = StorePostgres }, "DATABASE_URL"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"zero rate", func(c *Config) { c.AuthRateLimitBurst = 0 }, "AUTH_RATE_LIMIT"},
		{"zero upload", func(c *Config) { c.MaxUploadSizeMB = 0 }, "MAX_UPLOAD_SIZE_MB"},
		{"upload below picture limit", func(c *Config) { c.MaxUploadSizeMB = 1 }, "MAX_UPLOAD_SIZE_MB must be at least 6"},
		{"upload equal to picture limit", func(c *Config) { c.MaxUploadSizeMB = 5 }, "MAX_UPLOAD_SIZE_MB"},
		{"smallest upload", func(c *Config) { c.MaxUploadSizeMB = 6 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
