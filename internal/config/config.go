package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// External identity provider token verification
	AuthJWTSecret string

	// Calendly scheduling provider
	CalendlyBaseURL     string
	CalendlyAccessToken string
	CalendlyOrigin      string

	// Document store tables
	AppointmentsTable string
	UsersTable        string

	// Doctor profile images
	AvatarBucket    string
	AvatarURLExpiry time.Duration

	// AWS wiring (shared by DynamoDB, SQS, SES, S3)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Booking sessions
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	BookingSessionTTL time.Duration

	// Confirmation notifications
	NotifyQueueURL    string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	WorkerCount       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		CalendlyBaseURL:     getEnv("CALENDLY_BASE_URL", "https://api.calendly.com"),
		CalendlyAccessToken: getEnv("CALENDLY_ACCESS_TOKEN", ""),
		CalendlyOrigin:      getEnv("CALENDLY_ORIGIN", "https://calendly.com"),

		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", "appointments"),
		UsersTable:        getEnv("USERS_TABLE", "users"),

		AvatarBucket:    getEnv("AVATAR_BUCKET", ""),
		AvatarURLExpiry: getEnvAsDuration("AVATAR_URL_EXPIRY", 15*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:         getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		BookingSessionTTL: getEnvAsDuration("BOOKING_SESSION_TTL", 30*time.Minute),

		NotifyQueueURL:    getEnv("NOTIFY_QUEUE_URL", ""),
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "ses"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "MedConnect"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "MedConnect"),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),
	}
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

// getEnvAsSlice splits a comma-separated environment variable into values.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
