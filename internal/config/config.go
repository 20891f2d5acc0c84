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

	// Database
	DBPath string

	// Feed configuration
	FeedMode         string // "reddit" or "mock"
	Subreddit        string
	PollInterval     time.Duration
	FetchLimit       int
	ReconnectBackoff time.Duration

	// Reddit API credentials (optional; public listing is used without them)
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	// Notification configuration
	WebhookURL        string
	MentionString     string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Admin bot
	TelegramToken      string
	TelegramAllowedIDs []int64

	// Digest schedule: "daily", "weekly" or "off"
	DigestSchedule string

	// Match archive
	StorageAccount   string
	StorageContainer string
	ArchiveDir       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DBPath: getEnv("WEMB_DB_PATH", "wemb.db"),

		FeedMode:         getEnv("WEMB_FEED_MODE", "reddit"),
		Subreddit:        getEnv("WEMB_SUBREDDIT", "watchexchange"),
		PollInterval:     getDurationEnv("WEMB_POLL_INTERVAL", 5*time.Second),
		FetchLimit:       getIntEnv("WEMB_FETCH_LIMIT", 100),
		ReconnectBackoff: getDurationEnv("WEMB_RECONNECT_BACKOFF", 10*time.Second),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "wemb/1.0"),

		WebhookURL:    getEnv("WEMB_WEBHOOK_URL", ""),
		MentionString: getEnv("WEMB_MENTION_STRING", ""),

		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		TelegramToken:      getEnv("WEMB_TELEGRAM_TOKEN", ""),
		TelegramAllowedIDs: getInt64SliceEnv("WEMB_TELEGRAM_ALLOWED_IDS"),

		DigestSchedule: getEnv("DIGEST_SCHEDULE", "daily"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "wemb-matches"),
		ArchiveDir:       getEnv("WEMB_ARCHIVE_DIR", "archive"),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("WEMB_WEBHOOK_URL is required")
	}

	if c.FeedMode != "reddit" && c.FeedMode != "mock" {
		return fmt.Errorf("WEMB_FEED_MODE must be 'reddit' or 'mock'")
	}

	if c.DigestSchedule != "daily" && c.DigestSchedule != "weekly" && c.DigestSchedule != "off" {
		return fmt.Errorf("DIGEST_SCHEDULE must be 'daily', 'weekly' or 'off'")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("WEMB_POLL_INTERVAL must be positive")
	}

	if c.ReconnectBackoff <= 0 {
		return fmt.Errorf("WEMB_RECONNECT_BACKOFF must be positive")
	}

	if c.FetchLimit < 1 || c.FetchLimit > 100 {
		return fmt.Errorf("WEMB_FETCH_LIMIT must be between 1 and 100")
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64SliceEnv(key string) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
