package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	APIServerAddr   string `env:"API_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	Timezone        string `env:"TIMEZONE" envDefault:"Local"`

	// An empty PostgresURL leaves the datastore unconfigured; the API then answers 503.
	PostgresURL        string        `env:"POSTGRES_URL"`
	RedisURL           string        `env:"REDIS_URL"`
	DatastoreTimeout   time.Duration `env:"DATASTORE_TIMEOUT" envDefault:"5s"`
	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerOpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
	WorkshopCacheTTL   time.Duration `env:"WORKSHOP_CACHE_TTL" envDefault:"1m"`
	WorkshopCacheSize  int64         `env:"WORKSHOP_CACHE_SIZE" envDefault:"10000"`
	UnknownKeyCacheTTL time.Duration `env:"UNKNOWN_KEY_CACHE_TTL" envDefault:"30s"`

	UsageFallbackLock          string        `env:"USAGE_FALLBACK_LOCK" envDefault:"none"` // none, memory, redis
	UsageLockTTL               time.Duration `env:"USAGE_LOCK_TTL" envDefault:"15s"`
	UsageJournalPath           string        `env:"USAGE_JOURNAL_PATH"`
	UsageJournalSegmentSize    int64         `env:"USAGE_JOURNAL_SEGMENT_SIZE_BYTES" envDefault:"1048576"`  // 1MB
	UsageJournalMaxDiskSize    int64         `env:"USAGE_JOURNAL_MAX_DISK_SIZE_BYTES" envDefault:"67108864"` // 64MB
	UsageJournalReplayInterval time.Duration `env:"USAGE_JOURNAL_REPLAY_INTERVAL" envDefault:"30s"`

	FoundingsDataPath         string `env:"FOUNDINGS_DATA_PATH" envDefault:"data/foundings.json"`
	ManagementChangesDataPath string `env:"MANAGEMENT_CHANGES_DATA_PATH" envDefault:"data/management_changes.json"`

	RateLimitPerMinute      int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`
	LoginRateLimitPerMinute int      `env:"LOGIN_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	// Empty allows same-origin requests only. "*" is rejected since the
	// dashboard sends credentials.
	CORSAllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	JWTSecret         string        `env:"JWT_SECRET"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure      bool          `env:"COOKIE_SECURE" envDefault:"false"`
	DashboardUsername string        `env:"DASHBOARD_USERNAME"`
	DashboardPassword string        `env:"DASHBOARD_PASSWORD"`

	SanitizerSourceRenames       string   `env:"SANITIZER_SOURCE_RENAMES" envDefault:"NORTHDATA:HANDELSREGISTER"`
	SanitizerInternalMarker      string   `env:"SANITIZER_INTERNAL_MARKER" envDefault:"northdata"`
	SanitizerExcludedEmailDomain []string `env:"SANITIZER_EXCLUDED_EMAIL_DOMAINS" envDefault:"northdata.de,northdata.com" envSeparator:","`
	SanitizerExcludedEmails      []string `env:"SANITIZER_EXCLUDED_EMAILS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.UsageFallbackLock {
	case "none", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("USAGE_FALLBACK_LOCK=redis requires REDIS_URL")
		}
		// A holder must never outlive its lock while still writing.
		if c.DatastoreTimeout <= 0 {
			return fmt.Errorf("USAGE_FALLBACK_LOCK=redis requires a positive DATASTORE_TIMEOUT")
		}
		if c.UsageLockTTL <= 2*c.DatastoreTimeout {
			return fmt.Errorf("USAGE_LOCK_TTL %v must exceed twice DATASTORE_TIMEOUT (%v)", c.UsageLockTTL, c.DatastoreTimeout)
		}
	default:
		return fmt.Errorf("invalid USAGE_FALLBACK_LOCK %q (want none, memory or redis)", c.UsageFallbackLock)
	}
	if c.RateLimitPerMinute < 0 || c.LoginRateLimitPerMinute < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	for _, origin := range c.CORSAllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must list explicit origins, not *")
		}
	}
	if _, err := c.SourceRenames(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// DashboardEnabled reports whether the session-cookie dashboard routes are served.
func (c *Config) DashboardEnabled() bool {
	return c.JWTSecret != ""
}

// Location resolves Timezone for the key expiry day boundary.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SourceRenames parses "FROM:TO,FROM2:TO2".
func (c *Config) SourceRenames() (map[string]string, error) {
	renames := make(map[string]string)
	for _, pair := range strings.Split(c.SanitizerSourceRenames, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, ":")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid SANITIZER_SOURCE_RENAMES entry %q", pair)
		}
		renames[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	for _, to := range renames {
		if _, chained := renames[to]; chained {
			return nil, fmt.Errorf("SANITIZER_SOURCE_RENAMES target %q is itself renamed", to)
		}
	}
	return renames, nil
}
