package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Config holds the complete application configuration, loadable from
// environment variables (TOYBOX_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string        `usage:"PostgreSQL connection URL (TOYBOX_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisAddr     string        `default:"localhost:6379" usage:"Redis address for carts and checkout sessions" flag:"redis-addr"`
	RedisPassword string        `default:"" usage:"Redis password" flag:"redis-password"`
	TokenPepper   string        `usage:"HMAC pepper for buyer token hashing (TOYBOX_TOKEN_PEPPER)" flag:"token-pepper"`
	CartTTL       time.Duration `default:"72h" usage:"Idle cart expiry" flag:"cart-ttl"`
	SessionTTL    time.Duration `default:"24h" usage:"Checkout idempotency record expiry" flag:"session-ttl"`
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TOYBOX",
		Files:     []string{"config.yaml", "/etc/toybox/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set TOYBOX_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's TOYBOX_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && c.RedisAddr == "localhost:6379" {
		if opts, err := redis.ParseURL(v); err == nil {
			c.RedisAddr = opts.Addr
			c.RedisPassword = opts.Password
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
