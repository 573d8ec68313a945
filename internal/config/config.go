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

	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration (anonymous quota store + source-rule cache)
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// Auth configuration
	JWTSecret string

	// Monitoring cadence, hours between full passes
	PassIntervalHours int
	// How far back evidence providers search on each pass
	SearchWindow time.Duration

	// Azure Blob archive for raw sighting batches (optional)
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	AlertWebhookURL string
	AlertEmail      string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Evidence provider credentials
	RedditClientID     string
	RedditClientSecret string
	TwitterBearerToken string
	YouTubeAPIKey      string
	SearchAPIKey       string
	SearchEngineID     string

	// Source rules
	DefaultMinScore int
	SourceRuleTTL   time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getIntEnv("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "slanglab"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "slanglab"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getIntEnv("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		PassIntervalHours: getIntEnv("PASS_INTERVAL_HOURS", 6),
		SearchWindow:      getDurationEnv("SEARCH_WINDOW", 24*time.Hour),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "sightings"),

		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		AlertEmail:      getEnv("ALERT_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		SearchAPIKey:       getEnv("SEARCH_API_KEY", ""),
		SearchEngineID:     getEnv("SEARCH_ENGINE_ID", ""),

		DefaultMinScore: getIntEnv("DEFAULT_MIN_SCORE", 40),
		SourceRuleTTL:   getDurationEnv("SOURCE_RULE_TTL", 5*time.Minute),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.PassIntervalHours < 1 || c.PassIntervalHours > 24 {
		return fmt.Errorf("PASS_INTERVAL_HOURS must be between 1 and 24")
	}

	if c.DefaultMinScore < 0 || c.DefaultMinScore > 100 {
		return fmt.Errorf("DEFAULT_MIN_SCORE must be between 0 and 100")
	}

	if c.AlertEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_EMAIL is set")
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

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
