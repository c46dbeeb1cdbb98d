package config

import (
	"testing"

	"github.com/asemenov/finledger/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultCurrency != domain.DefaultCurrency {
		t.Errorf("DefaultCurrency = %q, want %q", cfg.DefaultCurrency, domain.DefaultCurrency)
	}
	if cfg.CurrencyPolicy != domain.CurrencyFallback {
		t.Errorf("CurrencyPolicy = %q, want fallback", cfg.CurrencyPolicy)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("CURRENCY_POLICY", "reject")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.DefaultCurrency != "USD" {
		t.Errorf("DefaultCurrency = %q, want USD", cfg.DefaultCurrency)
	}
	if cfg.CurrencyPolicy != domain.CurrencyReject {
		t.Errorf("CurrencyPolicy = %q, want reject", cfg.CurrencyPolicy)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CURRENCY_POLICY", "maybe")
	if _, err := Load(); err == nil {
		t.Error("Load accepted invalid CURRENCY_POLICY")
	}

	t.Setenv("CURRENCY_POLICY", "fallback")
	t.Setenv("DEFAULT_CURRENCY", "XYZ")
	if _, err := Load(); err == nil {
		t.Error("Load accepted unsupported DEFAULT_CURRENCY")
	}
}
