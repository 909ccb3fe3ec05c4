package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIBaseURL is the deployed match/scheduling backend used when no
// override is configured.
const DefaultAPIBaseURL = "https://solhealthbe-production.up.railway.app"

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Match/scheduling backend
	APIBaseURL        string
	APITimeout        time.Duration
	MatchFetchTimeout time.Duration
	MatchLimit        int
	DefaultTimezone   string

	// Gateway surface
	CORSAllowedOrigins []string
	BookingRateLimit   float64
	BookingRateBurst   int

	// Persistence
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	MatchCacheTTL  time.Duration
	BookingLockTTL time.Duration

	// Operator alerts
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESConfigSet      string
	OpsAlertEmail     string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Therapist media
	MediaBucket        string
	MediaBucketURL     string
	MediaCloudFrontURL string
	MediaPresign       bool
	MediaPresignTTL    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL:        resolveAPIBaseURL(),
		APITimeout:        getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		MatchFetchTimeout: getEnvAsDuration("MATCH_FETCH_TIMEOUT", 30*time.Second),
		MatchLimit:        getEnvAsInt("MATCH_LIMIT", 50),
		DefaultTimezone:   getEnv("DEFAULT_TIMEZONE", "America/New_York"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		BookingRateLimit:   getEnvAsFloat("BOOKING_RATE_LIMIT", 1),
		BookingRateBurst:   getEnvAsInt("BOOKING_RATE_BURST", 5),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		MatchCacheTTL:  getEnvAsDuration("MATCH_CACHE_TTL", 30*time.Minute),
		BookingLockTTL: getEnvAsDuration("BOOKING_LOCK_TTL", 2*time.Minute),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Sol Health Booking"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESConfigSet:      getEnv("SES_CONFIGURATION_SET", ""),
		OpsAlertEmail:     getEnv("OPS_ALERT_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		MediaBucket:        getEnv("MEDIA_BUCKET", "therapists-personal-data"),
		MediaBucketURL:     getEnv("MEDIA_BUCKET_URL", "https://therapists-personal-data.s3.us-east-2.amazonaws.com"),
		MediaCloudFrontURL: getEnv("MEDIA_CLOUDFRONT_URL", ""),
		MediaPresign:       getEnvAsBool("MEDIA_PRESIGN", false),
		MediaPresignTTL:    getEnvAsDuration("MEDIA_PRESIGN_TTL", 15*time.Minute),
	}
}

// resolveAPIBaseURL prefers API_BASE_URL, then the front end's
// NEXT_PUBLIC_API_BASE_URL, then the deployed backend.
func resolveAPIBaseURL() string {
	base := getEnv("API_BASE_URL", getEnv("NEXT_PUBLIC_API_BASE_URL", DefaultAPIBaseURL))
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
