// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/alerts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config is populated from environment variables.
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Dispatch
	CronSecret          string
	Location            *time.Location // OPERATING_TIMEZONE
	DispatchConcurrency int
	PushTimeout         time.Duration
	PushTTL             time.Duration
	TagPolicy           string // replace or stack
	AlertClickURL       string

	// Web Push identity
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Maintenance
	SendRetention time.Duration
	PruneInterval time.Duration

	// Cache
	CacheEnabled    bool
	VisibleCacheTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL or POSTGRES_URL must be set")
	}

	tzName := envOr("OPERATING_TIMEZONE", "Europe/Madrid")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("OPERATING_TIMEZONE %q: %w", tzName, err)
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:4321",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CronSecret:          envOr("CRON_SECRET", ""),
		Location:            loc,
		DispatchConcurrency: envInt("DISPATCH_CONCURRENCY", 8),
		PushTimeout:         envDuration("PUSH_TIMEOUT", 10*time.Second),
		PushTTL:             envDuration("PUSH_TTL", 15*time.Minute),
		TagPolicy:           envOr("ALERT_TAG_POLICY", "replace"),
		AlertClickURL:       envOr("ALERT_CLICK_URL", "/"),

		VAPIDPublicKey:  envOr("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: envOr("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    envOr("VAPID_SUBJECT", "mailto:alerts@localhost"),

		SendRetention: envDuration("SEND_RETENTION", 30*24*time.Hour),
		PruneInterval: envDuration("PRUNE_INTERVAL", time.Hour),

		CacheEnabled:    envBool("CACHE_ENABLED", true),
		VisibleCacheTTL: envDuration("VISIBLE_CACHE_TTL", 30*time.Second),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// PushEnabled reports whether a VAPID key pair is configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "15m") or a bare number of
// seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
