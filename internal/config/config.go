// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/asemenov/finledger/internal/domain"
)

// Config holds everything the API server and the import CLI read from the
// environment.
type Config struct {
	Port     string
	LogLevel string

	DatabaseDSN string
	RedisAddr   string // empty disables cache invalidation

	GCSBucket   string // empty disables gs:// statement sources
	BQProject   string // empty disables the analytics export
	BQDataset   string
	BQTable     string
	GeminiModel string

	DefaultCurrency string
	CurrencyPolicy  domain.CurrencyPolicy
}

// Load reads the environment, merging in .env when present. A missing .env
// file is not an error; a malformed one is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := &Config{
		Port:            envOr("PORT", "8080"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		BQProject:       os.Getenv("BQ_PROJECT"),
		BQDataset:       envOr("BQ_DATASET", "finance"),
		BQTable:         envOr("BQ_TABLE", "transactions"),
		GeminiModel:     os.Getenv("GEMINI_MODEL"),
		DefaultCurrency: envOr("DEFAULT_CURRENCY", domain.DefaultCurrency),
	}

	switch strings.ToLower(envOr("CURRENCY_POLICY", "fallback")) {
	case "fallback":
		cfg.CurrencyPolicy = domain.CurrencyFallback
	case "reject":
		cfg.CurrencyPolicy = domain.CurrencyReject
	default:
		return nil, fmt.Errorf("config: CURRENCY_POLICY must be fallback or reject, got %q", os.Getenv("CURRENCY_POLICY"))
	}

	cfg.DefaultCurrency = domain.NormalizeCurrency(cfg.DefaultCurrency)
	if !domain.SupportedCurrency(cfg.DefaultCurrency) {
		return nil, fmt.Errorf("config: unsupported DEFAULT_CURRENCY %q", cfg.DefaultCurrency)
	}

	return cfg, nil
}

// DefaultPreferences is the preference set applied to users who never saved
// their own, built from DEFAULT_CURRENCY and CURRENCY_POLICY.
func (c *Config) DefaultPreferences() *domain.Preferences {
	return &domain.Preferences{
		DefaultCurrency:       c.DefaultCurrency,
		OnUnsupportedCurrency: c.CurrencyPolicy,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
