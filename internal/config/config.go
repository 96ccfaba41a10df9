package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Meta Ad Library API
	MetaAccessToken     string
	MetaAPIBaseURL      string
	MetaRateLimit       int
	MetaRateLimitWindow time.Duration

	// Result cache
	CacheBackend  string // "memory" or "redis"
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Schedule configuration
	ReportSchedule string // "daily" or "weekly"
	TimeZone       string

	// Competitor watch
	WatchTerms     []string
	WatchPageIDs   []string
	WatchCountries []string

	// Azure Storage configuration
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Inbound API throttle, per client IP
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APITrustProxy     bool

	// Snapshot image extraction
	SnapshotTimeout    time.Duration
	SnapshotRenderWait time.Duration
	SnapshotHeadless   bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "3000"),
		Debug: getBoolEnv("DEBUG", false),

		MetaAccessToken:     getEnv("META_ACCESS_TOKEN", ""),
		MetaAPIBaseURL:      getEnv("META_API_BASE_URL", "https://graph.facebook.com/v18.0"),
		MetaRateLimit:       getIntEnv("META_RATE_LIMIT_REQUESTS", 200),
		MetaRateLimitWindow: getDurationEnv("META_RATE_LIMIT_WINDOW", time.Hour),

		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheTTL:      getDurationEnv("CACHE_TTL", 30*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		ReportSchedule: getEnv("REPORT_SCHEDULE", "weekly"),
		TimeZone:       getEnv("TIMEZONE", "UTC"),

		WatchTerms:     getSliceEnv("WATCH_TERMS", nil),
		WatchPageIDs:   getSliceEnv("WATCH_PAGE_IDS", nil),
		WatchCountries: getSliceEnv("WATCH_COUNTRIES", []string{"ALL"}),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "ad-reports"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		APIRateLimitRPS:   getFloatEnv("API_RATE_LIMIT_RPS", 5),
		APIRateLimitBurst: getIntEnv("API_RATE_LIMIT_BURST", 20),
		APITrustProxy:     getBoolEnv("API_TRUST_PROXY", false),

		SnapshotTimeout:    getDurationEnv("SNAPSHOT_TIMEOUT", 30*time.Second),
		SnapshotRenderWait: getDurationEnv("SNAPSHOT_RENDER_WAIT", 6*time.Second),
		SnapshotHeadless:   getBoolEnv("SNAPSHOT_HEADLESS", true),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// WatchEnabled reports whether scheduled competitor watches are configured.
func (c *Config) WatchEnabled() bool {
	return len(c.WatchTerms) > 0 || len(c.WatchPageIDs) > 0
}

func (c *Config) validate() error {
	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND is 'redis'")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'memory' or 'redis'")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.MetaRateLimit <= 0 || c.MetaRateLimitWindow <= 0 {
		return fmt.Errorf("META_RATE_LIMIT_REQUESTS and META_RATE_LIMIT_WINDOW must be positive")
	}

	if c.APIRateLimitRPS <= 0 || c.APIRateLimitBurst <= 0 {
		return fmt.Errorf("API_RATE_LIMIT_RPS and API_RATE_LIMIT_BURST must be positive")
	}

	if c.WatchEnabled() && c.TeamsWebhookURL == "" && c.NotificationEmail == "" {
		return fmt.Errorf("at least one notification method must be configured when watches are set (TEAMS_WEBHOOK_URL or NOTIFICATION_EMAIL)")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
