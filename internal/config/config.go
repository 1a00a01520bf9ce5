package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	LogLevel       string
	LogFormat      string // "json" | "text"
	TrustProxy     bool   // honour X-Forwarded-For / X-Real-Ip from a fronting proxy

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	ExportURLTTL   time.Duration

	JWTPrivateKeyPath  string
	JWTPublicKeyPath   string
	JWTExpiry          time.Duration
	VerificationExpiry time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	// SMTPInsecureSkipVerify disables certificate checks for local relays
	// (MailHog, Mailpit). Never set in deployed environments.
	SMTPInsecureSkipVerify bool

	SNSRegion   string
	SNSTopicARN string

	RedisURL       string
	GoogleClientID string

	OTP OTPConfig
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users        string
	Transactions string
	OTPs         string
}

// OTPConfig controls code generation, expiry and the delivery/storage backends.
type OTPConfig struct {
	Length         int
	Expiry         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	Channel        string // "smtp" | "sns"
	Store          string // "dynamo" | "redis"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:        getEnv("DYNAMO_TABLE_USERS", "users"),
			Transactions: getEnv("DYNAMO_TABLE_TRANSACTIONS", "transactions"),
			OTPs:         getEnv("DYNAMO_TABLE_OTPS", "otps"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "finance-tracker-exports"),
		ExportURLTTL: time.Duration(getEnvInt("EXPORT_URL_TTL_HOURS", 24)) * time.Hour,

		JWTPrivateKeyPath:  getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:   getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:          time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 30)) * 24 * time.Hour,
		VerificationExpiry: time.Duration(getEnvInt("VERIFICATION_TOKEN_EXPIRY_MINUTES", 15)) * time.Minute,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:     getEnv("SMTP_FROM", "Finance Tracker <noreply@financetracker.com>"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SMTPInsecureSkipVerify: getEnvBool("SMTP_INSECURE_SKIP_VERIFY", false),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		RedisURL:       getEnv("REDIS_URL", ""),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		OTP: OTPConfig{
			Length:         getEnvInt("OTP_LENGTH", 6),
			Expiry:         time.Duration(getEnvInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
			MaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 3),
			ResendCooldown: time.Duration(getEnvInt("OTP_RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
			Channel:        strings.ToLower(getEnv("OTP_DELIVERY_CHANNEL", "smtp")),
			Store:          strings.ToLower(getEnv("OTP_STORE", "dynamo")),
		},
	}
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt ignores values that are not positive integers.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// getEnvBool accepts the strconv.ParseBool forms; anything else yields fallback.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
