package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
// Provider credentials are read once at startup and treated as read-only
// afterwards; no component re-reads the environment mid-request.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	DefaultCurrency string
	ProviderTimeout time.Duration
	ReplayTTL       time.Duration

	CheckoutReturnURL string
	CheckoutCancelURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailEnabled bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "*")),
		PayPalClientID:     strings.TrimSpace(k.String("PAYPAL_CLIENT_ID")),
		PayPalClientSecret: strings.TrimSpace(k.String("PAYPAL_CLIENT_SECRET")),
		PayPalBaseURL:      valueOrDefault(k.String("PAYPAL_BASE_URL"), "https://api-m.sandbox.paypal.com"),
		RazorpayKeyID:      strings.TrimSpace(k.String("RAZORPAY_KEY_ID")),
		RazorpayKeySecret:  strings.TrimSpace(k.String("RAZORPAY_KEY_SECRET")),
		RazorpayBaseURL:    valueOrDefault(k.String("RAZORPAY_BASE_URL"), "https://api.razorpay.com"),
		DefaultCurrency:    valueOrDefault(k.String("PAYMENT_DEFAULT_CURRENCY"), "USD"),
		ProviderTimeout:    parseDuration(k.String("PAYMENT_PROVIDER_TIMEOUT"), "5s"),
		ReplayTTL:          parseDuration(k.String("PAYMENT_REPLAY_TTL"), "24h"),
		CheckoutReturnURL:  strings.TrimSpace(k.String("CHECKOUT_RETURN_URL")),
		CheckoutCancelURL:  strings.TrimSpace(k.String("CHECKOUT_CANCEL_URL")),
		SMTPHost:           strings.TrimSpace(k.String("SMTP_HOST")),
		SMTPPort:           atoiDefault(k.String("SMTP_PORT"), 587),
		SMTPUsername:       k.String("SMTP_USERNAME"),
		SMTPPassword:       k.String("SMTP_PASSWORD"),
		EmailFrom:          valueOrDefault(k.String("EMAIL_FROM"), "orders@auroragems.example"),
		EmailEnabled:       parseBool(valueOrDefault(k.String("EMAIL_ENABLED"), "true")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func atoiDefault(value string, def int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return def
	}
	return parsed
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
