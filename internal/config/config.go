// Package config loads the univctl configuration from an optional YAML file
// overlaid with UNIV__ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Sternrassler/univ-admin-client/pkg/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "UNIV__"

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the top-level configuration.
type Config struct {
	Backend   BackendConfig   `koanf:"backend"`
	Retry     RetryConfig     `koanf:"retry"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	Session   SessionConfig   `koanf:"session"`
	Pager     PagerConfig     `koanf:"pager"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// BackendConfig describes the university backend.
type BackendConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	UserAgent string        `koanf:"user_agent" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

// RetryConfig tunes GET retries.
type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `koanf:"max_backoff" validate:"gtefield=InitialBackoff"`
}

// RateLimitConfig throttles outgoing requests.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// RedisConfig is shared by the response cache and the redis session store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"min=0,max=15"`
}

// CacheConfig enables conditional GETs backed by Redis.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

// SessionConfig selects where the session token and user are kept.
type SessionConfig struct {
	Store       string        `koanf:"store" validate:"oneof=memory file redis"`
	Path        string        `koanf:"path"`
	RedisPrefix string        `koanf:"redis_prefix"`
	TTL         time.Duration `koanf:"ttl" validate:"min=0"`
}

// PagerConfig tunes the list screens.
type PagerConfig struct {
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"min=0"`
	ErrorBuffer  int           `koanf:"error_buffer" validate:"min=1"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration. Load starts from it.
func Default() Config {
	sessionPath := "univctl-session.json"
	if dir, err := os.UserConfigDir(); err == nil {
		sessionPath = filepath.Join(dir, "univctl", "session.json")
	}

	return Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:3000",
			UserAgent: "univctl/1.0",
			Timeout:   30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		RateLimit: RateLimitConfig{Enabled: true, RPS: 10, Burst: 5},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Cache:     CacheConfig{TTL: 5 * time.Minute},
		Session: SessionConfig{
			Store:       StoreFile,
			Path:        sessionPath,
			RedisPrefix: "univ:session:",
		},
		Pager: PagerConfig{FetchTimeout: 30 * time.Second, ErrorBuffer: 8},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from the YAML file at configPath (skipped when
// empty) and overlays environment variables. Variables use the prefix UNIV__
// and a double underscore as the hierarchy separator, so
// UNIV__BACKEND__BASE_URL overrides backend.base_url.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, EnvPrefix)
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field and cross-field constraints and normalizes values.
func (c *Config) Validate() error {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid rate_limit.rps %v: must be positive when rate limiting is enabled", c.RateLimit.RPS)
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid rate_limit.burst %d: must be positive when rate limiting is enabled", c.RateLimit.Burst)
		}
	}

	needsRedis := c.Cache.Enabled || c.Session.Store == StoreRedis
	if needsRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr is required when the cache or the redis session store is enabled")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("invalid cache.ttl %v: must be greater than 0", c.Cache.TTL)
	}
	if c.Session.Store == StoreFile && strings.TrimSpace(c.Session.Path) == "" {
		return fmt.Errorf("session.path is required when session.store is %q", StoreFile)
	}
	return nil
}

// NeedsRedis reports whether any component uses Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Enabled || c.Session.Store == StoreRedis
}
