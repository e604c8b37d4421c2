package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Content API (catalog, trials, custom packages, payments)
	ContentAPIURL     string
	ContentAPITimeout time.Duration
	ContentAPIRPS     float64 // outbound requests per second, 0 disables throttling
	ContentAPIBurst   int

	// Payment gateway: "api" delegates to the content API, "stripe" calls
	// Stripe Checkout directly.
	GatewayProvider  string
	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string
	DefaultCurrency  string

	// Bearer token verification
	AuthJWTSecret string

	// Single-flight guard: "memory" for one instance, "redis" when several
	// instances serve the same users.
	GuardBackend     string
	RedisURL         string
	GuardInFlightTTL time.Duration // 0 keeps an in-flight guard until it resolves
	CheckoutHoldTTL  time.Duration // how long a successful checkout stays held

	// Per-caller throttling of mutating routes
	RateLimitPerMinute int
	RateLimitBurst     int

	// Optional; enables the attempt audit log
	DatabaseUrl string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		ContentAPITimeout: getEnvDuration("CONTENT_API_TIMEOUT", 10*time.Second),
		ContentAPIRPS:     getEnvFloat("CONTENT_API_RPS", 0),
		ContentAPIBurst:   getEnvInt("CONTENT_API_BURST", 10),

		GatewayProvider:  getEnv("GATEWAY_PROVIDER", "api"),
		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		StripeSuccessURL: getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:  getEnv("STRIPE_CANCEL_URL", ""),
		DefaultCurrency:  getEnv("DEFAULT_CURRENCY", "EUR"),

		GuardBackend:     getEnv("GUARD_BACKEND", "memory"),
		RedisURL:         getEnv("REDIS_URL", ""),
		GuardInFlightTTL: getEnvDuration("GUARD_INFLIGHT_TTL", 0),
		CheckoutHoldTTL:  getEnvDuration("CHECKOUT_HOLD_TTL", 15*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 5),

		DatabaseUrl: getEnv("DATABASE_URL", ""),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.ContentAPIURL = os.Getenv("CONTENT_API_URL")
	if cfg.ContentAPIURL == "" {
		return nil, fmt.Errorf("CONTENT_API_URL is required")
	}
	if u, err := url.Parse(cfg.ContentAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CONTENT_API_URL must be an absolute URL, got: %s", cfg.ContentAPIURL)
	}

	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	// Validate gateway configuration
	if cfg.GatewayProvider == "stripe" {
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when GATEWAY_PROVIDER is 'stripe'")
		}
		if cfg.StripeSuccessURL == "" {
			return nil, fmt.Errorf("STRIPE_SUCCESS_URL is required when GATEWAY_PROVIDER is 'stripe'")
		}
		if cfg.StripeCancelURL == "" {
			return nil, fmt.Errorf("STRIPE_CANCEL_URL is required when GATEWAY_PROVIDER is 'stripe'")
		}
	} else if cfg.GatewayProvider != "api" {
		return nil, fmt.Errorf("GATEWAY_PROVIDER must be either 'api' or 'stripe', got: %s", cfg.GatewayProvider)
	}

	// Validate guard configuration
	if cfg.GuardBackend == "redis" {
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when GUARD_BACKEND is 'redis'")
		}
	} else if cfg.GuardBackend != "memory" {
		return nil, fmt.Errorf("GUARD_BACKEND must be either 'memory' or 'redis', got: %s", cfg.GuardBackend)
	}
	if cfg.GuardInFlightTTL < 0 || cfg.CheckoutHoldTTL < 0 {
		return nil, fmt.Errorf("GUARD_INFLIGHT_TTL and CHECKOUT_HOLD_TTL must not be negative")
	}

	if cfg.RateLimitPerMinute < 1 || cfg.RateLimitBurst < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
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

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
