// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Credits
	// CreditFee is the number of credits debited per applied transformation.
	CreditFee int `env:"CREDIT_FEE" envDefault:"1"`

	// Transformation sessions
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SessionDebounce time.Duration `env:"SESSION_DEBOUNCE" envDefault:"1s"`

	// Media provider (hosted image rendering and search)
	MediaCloudName string `env:"MEDIA_CLOUD_NAME,required"`
	MediaAPIKey    string `env:"MEDIA_API_KEY,required"`
	MediaAPISecret string `env:"MEDIA_API_SECRET,required"`
	MediaFolder    string `env:"MEDIA_FOLDER" envDefault:"pixelift"`

	// Identity provider (user webhooks and metadata write-back)
	IdentityWebhookSecret string `env:"IDENTITY_WEBHOOK_SECRET,required"`
	IdentityAPIURL        string `env:"IDENTITY_API_URL" envDefault:"https://api.clerk.com/v1"`
	IdentityAPIKey        string `env:"IDENTITY_API_KEY" envDefault:""`

	// Payment provider (checkout and fulfillment webhooks)
	PaymentSecretKey     string `env:"PAYMENT_SECRET_KEY,required"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET,required"`
	PaymentSuccessURL    string `env:"PAYMENT_SUCCESS_URL" envDefault:"http://localhost:3000/profile"`
	PaymentCancelURL     string `env:"PAYMENT_CANCEL_URL" envDefault:"http://localhost:3000/credits"`

	// Rate limiting
	RateLimitAPIEnabled     bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM         int  `env:"RATE_LIMIT_API_RPM" envDefault:"300"`
	RateLimitAPIBurst       int  `env:"RATE_LIMIT_API_BURST" envDefault:"50"`
	RateLimitWebhookEnabled bool `env:"RATE_LIMIT_WEBHOOK_ENABLED" envDefault:"true"`
	RateLimitWebhookRPS     int  `env:"RATE_LIMIT_WEBHOOK_RPS" envDefault:"50"`
	RateLimitWebhookBurst   int  `env:"RATE_LIMIT_WEBHOOK_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CreditFee < 0 {
		return fmt.Errorf("CREDIT_FEE must be non-negative, got %d", c.CreditFee)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionDebounce < 0 {
		return fmt.Errorf("SESSION_DEBOUNCE must be non-negative, got %s", c.SessionDebounce)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be positive, got %d", c.MaxRequestBodySize)
	}
	return nil
}
