package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort  string          `yaml:"http_port"`
	LogLevel  string          `yaml:"log_level"`
	Backend   BackendConfig   `yaml:"backend"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Cookies   CookieConfig    `yaml:"cookies"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Freight   FreightConfig   `yaml:"freight"`
}

// BackendConfig points at the external commerce backend.
type BackendConfig struct {
	URL               string        `yaml:"url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	Retries           int           `yaml:"retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	BreakerThreshold  int           `yaml:"breaker_threshold"`
	BreakerTimeout    time.Duration `yaml:"breaker_timeout"`
	// ForwardAdminToken sends the admin's JWT instead of Token on admin calls.
	ForwardAdminToken bool          `yaml:"forward_admin_token"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds the approvals store DSN. Empty keeps approvals in memory.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type CookieConfig struct {
	Secret string        `yaml:"secret"`
	Secure bool          `yaml:"secure"`
	MaxAge time.Duration `yaml:"max_age"`
}

type CacheConfig struct {
	ProductsTTL time.Duration `yaml:"products_ttl"`
	FreightTTL  time.Duration `yaml:"freight_ttl"`
	CEPTTL      time.Duration `yaml:"cep_ttl"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type FreightConfig struct {
	OriginCEP string `yaml:"origin_cep"`
}

func defaults() *Config {
	return &Config{
		HTTPPort: "8080",
		LogLevel: "info",
		Backend: BackendConfig{
			URL:              "http://localhost:8081",
			Timeout:          5 * time.Second,
			Retries:          3,
			RetryDelay:       500 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerTimeout:   10 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Database: DatabaseConfig{
			MaxOpenConns: 20,
		},
		Auth:    AuthConfig{JWTSecret: "dev-secret-change-me"},
		Cookies: CookieConfig{Secret: "dev-cookie-secret-change-me", MaxAge: 30 * 24 * time.Hour},
		Cache: CacheConfig{
			ProductsTTL: 60 * time.Second,
			FreightTTL:  10 * time.Minute,
			CEPTTL:      24 * time.Hour,
		},
		RateLimit: RateLimitConfig{Requests: 120, Window: time.Minute},
	}
}

// NewConfig builds the configuration from defaults and environment only.
func NewConfig() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// Load reads an optional YAML file, then applies environment overrides.
// An empty path falls back to STOREFRONT_CONFIG.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("STOREFRONT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Backend.URL = getEnv("BACKEND_URL", c.Backend.URL)
	c.Backend.Token = getEnv("BACKEND_TOKEN", c.Backend.Token)
	c.Backend.Timeout = getEnvDuration("BACKEND_TIMEOUT", c.Backend.Timeout)
	c.Backend.Retries = getEnvInt("BACKEND_RETRIES", c.Backend.Retries)
	c.Backend.RetryDelay = getEnvDuration("BACKEND_RETRY_DELAY", c.Backend.RetryDelay)
	c.Backend.BreakerThreshold = getEnvInt("BACKEND_BREAKER_THRESHOLD", c.Backend.BreakerThreshold)
	c.Backend.BreakerTimeout = getEnvDuration("BACKEND_BREAKER_TIMEOUT", c.Backend.BreakerTimeout)
	c.Backend.ForwardAdminToken = getEnvBool("BACKEND_FORWARD_ADMIN_TOKEN", c.Backend.ForwardAdminToken)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Cookies.Secret = getEnv("COOKIE_SECRET", c.Cookies.Secret)
	c.Cookies.Secure = getEnvBool("COOKIE_SECURE", c.Cookies.Secure)

	c.Cache.ProductsTTL = getEnvDuration("CACHE_PRODUCTS_TTL", c.Cache.ProductsTTL)
	c.Cache.FreightTTL = getEnvDuration("CACHE_FREIGHT_TTL", c.Cache.FreightTTL)
	c.Cache.CEPTTL = getEnvDuration("CACHE_CEP_TTL", c.Cache.CEPTTL)

	c.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)
	c.Freight.OriginCEP = getEnv("FREIGHT_ORIGIN_CEP", c.Freight.OriginCEP)
}

func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url %q is not an absolute URL", c.Backend.URL))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if len(c.Cookies.Secret) < 16 {
		errs = append(errs, errors.New("cookies.secret must have at least 16 characters"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("rate_limit.requests must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
