package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Logger      LoggerConfig
	Billing     BillingConfig
	Stripe      StripeConfig
	Auth        AuthConfig
	Events      EventsConfig
	Cache       CacheConfig
	Secrets     SecretsConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration. URL wins over the discrete fields.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string // debug, info, warn, error
}

// BillingConfig holds pricing settings
type BillingConfig struct {
	TaxRatePercent decimal.Decimal
	Currency       string
}

// StripeConfig names the secrets the payment provider adapter needs
type StripeConfig struct {
	APIKeySecret       string
	WebhookSecretName  string
	WebhookVerifier    string // stripe or hmac
	WebhookHMACHeader  string
	CircuitMaxFailures int
	CircuitCooldown    time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecretName string
	Issuer        string
}

// EventsConfig holds the billing event publisher settings. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// CacheConfig holds the promotion cache settings. An empty URL disables caching.
type CacheConfig struct {
	RedisURL     string
	PromotionTTL time.Duration
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	Backend        string // env, file, aws, vault
	FilePath       string
	AWSRegion      string
	AWSProfile     string
	AWSEndpoint    string
	Prefix         string
	VaultAddress   string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	CacheTTL       time.Duration
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	APIRequestsPerSecond     float64
	APIBurst                 int
	WebhookRequestsPerSecond float64
	WebhookBurst             int
}

// LoadDotEnv loads a .env file outside production. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "production") {
		return nil
	}
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	taxRate, err := decimal.NewFromString(getEnv("TAX_RATE_PERCENT", "0"))
	if err != nil {
		return nil, fmt.Errorf("TAX_RATE_PERCENT: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "billing"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", ""),
		},
		Billing: BillingConfig{
			TaxRatePercent: taxRate,
			Currency:       strings.ToLower(getEnv("BILLING_CURRENCY", "usd")),
		},
		Stripe: StripeConfig{
			APIKeySecret:       getEnv("STRIPE_API_KEY_SECRET", "stripe/api-key"),
			WebhookSecretName:  getEnv("WEBHOOK_SECRET_NAME", "stripe/webhook-secret"),
			WebhookVerifier:    strings.ToLower(getEnv("WEBHOOK_VERIFIER", "stripe")),
			WebhookHMACHeader:  getEnv("WEBHOOK_HMAC_HEADER", ""),
			CircuitMaxFailures: getEnvAsInt("STRIPE_CIRCUIT_MAX_FAILURES", 5),
			CircuitCooldown:    getEnvAsDuration("STRIPE_CIRCUIT_COOLDOWN", 30*time.Second),
		},
		Auth: AuthConfig{
			JWTSecretName: getEnv("JWT_SECRET_NAME", "billing/jwt-signing-key"),
			Issuer:        getEnv("JWT_ISSUER", ""),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "billing.events"),
		},
		Cache: CacheConfig{
			RedisURL:     getEnv("REDIS_URL", ""),
			PromotionTTL: getEnvAsDuration("PROMOTION_CACHE_TTL", time.Minute),
		},
		Secrets: SecretsConfig{
			Backend:        strings.ToLower(getEnv("SECRETS_BACKEND", "env")),
			FilePath:       getEnv("SECRETS_FILE_PATH", "./secrets"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			Prefix:         getEnv("SECRETS_PREFIX", ""),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			CacheTTL:       getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			APIRequestsPerSecond:     getEnvAsFloat("RATE_LIMIT_API_RPS", 20),
			APIBurst:                 getEnvAsInt("RATE_LIMIT_API_BURST", 40),
			WebhookRequestsPerSecond: getEnvAsFloat("RATE_LIMIT_WEBHOOK_RPS", 100),
			WebhookBurst:             getEnvAsInt("RATE_LIMIT_WEBHOOK_BURST", 200),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	if c.Billing.TaxRatePercent.IsNegative() {
		return fmt.Errorf("TAX_RATE_PERCENT must not be negative")
	}
	switch c.Stripe.WebhookVerifier {
	case "stripe", "hmac":
	default:
		return fmt.Errorf("WEBHOOK_VERIFIER must be stripe or hmac, got %q", c.Stripe.WebhookVerifier)
	}
	switch c.Secrets.Backend {
	case "env", "file", "aws", "vault":
	default:
		return fmt.Errorf("SECRETS_BACKEND must be env, file, aws or vault, got %q", c.Secrets.Backend)
	}
	if c.Secrets.Backend == "vault" && c.Secrets.VaultAddress == "" {
		return fmt.Errorf("VAULT_ADDR is required when SECRETS_BACKEND=vault")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ConnectionString returns the PostgreSQL connection URL
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Address returns the HTTP listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
