package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/hirelane/internal/billing"
	"github.com/DukeRupert/hirelane/internal/domain"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public URL of this API (scoring callbacks, email links)
	BaseURL string

	// Bearer token verification. JWKS wins when both are set.
	JWTSecret   string
	JWTJWKSURL  string
	JWTIssuer   string
	JWTAudience string

	// Shared secret the scheduler sends to /api/reset-monthly-counts
	CronSecret string

	// Credit rules
	PlanCatalogFile   string // Optional YAML override of plan limits
	AutoUnlockOnApply bool   // Spend a credit on each new application

	// Scoring workflow
	ScoringProvider       string // "webhook" or "mock"
	ScoringWebhookURL     string
	ScoringWebhookToken   string
	ScoringCallbackSecret string
	ScoringTimeout        time.Duration
	ScoringMaxRetries     int
	ScoringCVURLTTL       time.Duration

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Stripe Billing Configuration
	// The webhook is a no-op when the secrets are empty.
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePrices        billing.PriceConfig

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// HTTP surface
	CORSAllowedOrigins []string
	ApplyRateLimit     int
	ApplyRateWindow    time.Duration
	ShutdownTimeout    time.Duration
	BackgroundTimeout  time.Duration
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTJWKSURL:  getEnv("JWT_JWKS_URL", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		CronSecret: getEnv("CRON_SECRET", ""),

		PlanCatalogFile:   getEnv("PLAN_CATALOG_FILE", ""),
		AutoUnlockOnApply: getEnvBool("AUTO_UNLOCK_ON_APPLY", true),

		ScoringProvider:       getEnv("SCORING_PROVIDER", "mock"),
		ScoringWebhookURL:     getEnv("SCORING_WEBHOOK_URL", ""),
		ScoringWebhookToken:   getEnv("SCORING_WEBHOOK_TOKEN", ""),
		ScoringCallbackSecret: getEnv("SCORING_CALLBACK_SECRET", ""),
		ScoringTimeout:        getEnvDuration("SCORING_TIMEOUT", 30*time.Second),
		ScoringMaxRetries:     getEnvInt("SCORING_MAX_RETRIES", 2),
		ScoringCVURLTTL:       getEnvDuration("SCORING_CV_URL_TTL", time.Hour),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@hirelane.app"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Hirelane"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePrices: billing.PriceConfig{
			domain.PlanStarter:    billing.ParsePriceIDs(getEnv("STRIPE_PRICE_STARTER", "")),
			domain.PlanPro:        billing.ParsePriceIDs(getEnv("STRIPE_PRICE_PRO", "")),
			domain.PlanBusiness:   billing.ParsePriceIDs(getEnv("STRIPE_PRICE_BUSINESS", "")),
			domain.PlanEnterprise: billing.ParsePriceIDs(getEnv("STRIPE_PRICE_ENTERPRISE", "")),
		},

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		ApplyRateLimit:     getEnvInt("APPLY_RATE_LIMIT", 10),
		ApplyRateWindow:    getEnvDuration("APPLY_RATE_WINDOW", time.Hour),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		BackgroundTimeout:  getEnvDuration("BACKGROUND_TIMEOUT", 30*time.Second),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate scoring workflow configuration
	switch cfg.ScoringProvider {
	case "webhook":
		if cfg.ScoringWebhookURL == "" {
			return nil, fmt.Errorf("SCORING_WEBHOOK_URL is required when SCORING_PROVIDER is 'webhook'")
		}
	case "mock":
	default:
		return nil, fmt.Errorf("SCORING_PROVIDER must be either 'webhook' or 'mock', got: %s", cfg.ScoringProvider)
	}

	return cfg, nil
}

// ValidateServer checks the settings only the HTTP entry points need.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" && c.JWTJWKSURL == "" {
		return fmt.Errorf("JWT_SECRET or JWT_JWKS_URL is required")
	}
	if c.Env != "development" {
		if c.CronSecret == "" {
			return fmt.Errorf("CRON_SECRET is required outside development")
		}
		if c.ScoringProvider == "webhook" && c.ScoringCallbackSecret == "" {
			return fmt.Errorf("SCORING_CALLBACK_SECRET is required when SCORING_PROVIDER is 'webhook'")
		}
	}
	return nil
}

// BillingEnabled reports whether Stripe webhooks can be verified.
func (c *Config) BillingEnabled() bool {
	return c.StripeWebhookSecret != ""
}

// IsDevelopment reports whether the app runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
