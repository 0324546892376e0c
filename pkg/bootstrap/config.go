package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	shared "github.com/lancerinf/garmin-importer/pkg"
)

// Config holds the importer configuration, read once from the environment.
type Config struct {
	ProjectID     string
	Environment   string
	LogLevel      string
	EnablePublish bool

	GCSArtifactBucket     string
	ArchivedActivityTopic string
	CredentialsSecret     string

	GarminAPIURL       string
	GarminTokenURL     string
	GarminClientID     string
	GarminClientSecret string

	MinActivities   int
	WindowDays      int
	SessionAttempts int
	FetchAttempts   int
	RetryDelay      time.Duration
	CallTimeout     time.Duration
	DefaultSince    time.Time

	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	PushgatewayURL string
	SentryDSN      string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		ProjectID:     getEnv("GOOGLE_CLOUD_PROJECT", shared.ProjectID),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnablePublish: getBoolEnv("ENABLE_PUBLISH", false),

		GCSArtifactBucket:     os.Getenv("GCS_ARTIFACT_BUCKET"),
		ArchivedActivityTopic: getEnv("ARCHIVED_ACTIVITY_TOPIC", shared.TopicArchivedActivity),
		CredentialsSecret:     getEnv("CREDENTIALS_SECRET", shared.DefaultCredentialsSecret),

		GarminAPIURL:       getEnv("GARMIN_API_URL", shared.DefaultGarminAPIURL),
		GarminTokenURL:     getEnv("GARMIN_TOKEN_URL", shared.DefaultGarminTokenURL),
		GarminClientID:     os.Getenv("GARMIN_CLIENT_ID"),
		GarminClientSecret: os.Getenv("GARMIN_CLIENT_SECRET"),

		MinActivities:   getIntEnv("MIN_ACTIVITIES", 5),
		WindowDays:      getIntEnv("WINDOW_DAYS", 30),
		SessionAttempts: getIntEnv("SESSION_ATTEMPTS", 3),
		FetchAttempts:   getIntEnv("FETCH_ATTEMPTS", 3),
		RetryDelay:      getDurationEnv("RETRY_DELAY", 2*time.Second),
		CallTimeout:     getDurationEnv("CALL_TIMEOUT", 60*time.Second),
		DefaultSince:    getDateEnv("DEFAULT_SINCE", shared.DefaultSinceDate),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockTTL:       getDurationEnv("LOCK_TTL", 15*time.Minute),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDateEnv parses a YYYY-MM-DD date as UTC midnight.
func getDateEnv(key, fallback string) time.Time {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.Parse(time.DateOnly, value); err == nil {
			return parsed
		}
	}
	parsed, _ := time.Parse(time.DateOnly, fallback)
	return parsed
}
