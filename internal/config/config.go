package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// SMS provider
	SMSProvider       string
	THBAPIKey         string
	THBAPISecret      string
	THBBaseURL        string
	THBSenderName     string
	THBTimeout        time.Duration
	THBMaxRetries     int
	ApprovedSenders   []string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	CountryCode       string
	DefaultMessage    string
	SendInterval      time.Duration
	WorkerCount       int
	JobQueueSize      int
	BatchTimeout      time.Duration
	ListDir           string
	ListExtensions    []string
	ListsS3Bucket     string
	ListsS3Prefix     string
	WebhookRateLimit  float64
	WebhookRateBurst  int
	QuotationFontPath string
	QuotationVAT      float64

	// LINE Official Account
	LineChannelSecret      string
	LineChannelAccessToken string

	// Dedup store
	DedupBackend       string
	DedupFile          string
	DedupIncludeSender bool
	DedupRedisKey      string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	DatabaseURL        string

	// Admin API
	AdminJWTSecret string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Summary emails
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SummaryEmailTo    string
}

// Load reads configuration from environment variables
func Load() *Config {
	sender := getEnv("THB_SENDER_NAME", "")
	return &Config{
		Port:     getEnv("PORT", "5000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SMSProvider:       strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "thaibulksms"))),
		THBAPIKey:         getEnv("THB_API_KEY", ""),
		THBAPISecret:      getEnv("THB_API_SECRET", ""),
		THBBaseURL:        getEnv("THB_BASE_URL", ""),
		THBSenderName:     sender,
		THBTimeout:        getEnvAsDuration("THB_TIMEOUT", 10*time.Second),
		THBMaxRetries:     getEnvAsInt("THB_MAX_RETRIES", 0),
		ApprovedSenders:   withDefault(getEnvAsList("APPROVED_SENDERS"), sender),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),
		CountryCode:       getEnv("COUNTRY_CODE", "+66"),
		DefaultMessage:    getEnv("DEFAULT_MESSAGE", "This is the default message configured on the gateway."),
		SendInterval:      getEnvAsDuration("SEND_INTERVAL", 500*time.Millisecond),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),
		JobQueueSize:      getEnvAsInt("JOB_QUEUE_SIZE", 16),
		BatchTimeout:      getEnvAsDuration("BATCH_TIMEOUT", 30*time.Minute),
		ListDir:           getEnv("LIST_DIR", "."),
		ListExtensions:    withDefault(getEnvAsList("LIST_EXTENSIONS"), ".txt"),
		ListsS3Bucket:     getEnv("LISTS_S3_BUCKET", ""),
		ListsS3Prefix:     getEnv("LISTS_S3_PREFIX", ""),
		WebhookRateLimit:  getEnvAsFloat("WEBHOOK_RATE_LIMIT", 5),
		WebhookRateBurst:  getEnvAsInt("WEBHOOK_RATE_BURST", 10),
		QuotationFontPath: getEnv("QUOTATION_FONT_PATH", ""),
		QuotationVAT:      getEnvAsFloat("QUOTATION_VAT_PERCENT", 7),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),

		DedupBackend:       strings.ToLower(strings.TrimSpace(getEnv("DEDUP_BACKEND", "file"))),
		DedupFile:          getEnv("DEDUP_FILE", "sent_log.json"),
		DedupIncludeSender: getEnvAsBool("DEDUP_KEY_INCLUDE_SENDER", true),
		DedupRedisKey:      getEnv("DEDUP_REDIS_KEY", "smsgateway:sent"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "SMS Gateway"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SummaryEmailTo:    getEnv("SUMMARY_EMAIL_TO", ""),
	}
}

// UsesAWS reports whether any AWS-backed component is configured.
func (c *Config) UsesAWS() bool {
	return c.ListsS3Bucket != "" || (c.SESFromEmail != "" && c.SummaryEmailTo != "")
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

// getEnvAsList splits a comma separated variable, dropping empty entries.
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

func withDefault(values []string, fallback string) []string {
	if len(values) > 0 || fallback == "" {
		return values
	}
	return []string{fallback}
}
