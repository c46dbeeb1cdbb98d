package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a currency wallet: an account scoped to exactly one currency.
// Balance is the signed running total of all committed transactions against it.
type Account struct {
	ID        string
	UserID    string
	Name      string
	Currency  string
	Balance   decimal.Decimal
	IsDefault bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultCurrency is used when the requested currency is missing or
// unsupported and the fallback policy is in effect.
const DefaultCurrency = "INR"

var supportedCurrencies = map[string]bool{
	"USD": true,
	"INR": true,
	"EUR": true,
	"GBP": true,
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SupportedCurrency reports whether code (already normalized) is in the
// closed set of supported currencies.
func SupportedCurrency(code string) bool {
	return supportedCurrencies[code]
}

// CurrencyPolicy decides what happens when a batch requests an unsupported
// currency.
type CurrencyPolicy string

const (
	// CurrencyFallback substitutes DefaultCurrency and keeps importing.
	CurrencyFallback CurrencyPolicy = "fallback"
	// CurrencyReject refuses the rows instead of guessing a currency.
	CurrencyReject CurrencyPolicy = "reject"
)

// Preferences is the per-user import configuration. It replaces the ambient
// client-side storage the web app used; callers load it from the store and
// pass it explicitly.
type Preferences struct {
	UserID                string
	DefaultCurrency       string
	OnUnsupportedCurrency CurrencyPolicy
}

// DefaultPreferences returns the preferences used when a user has none stored
// and the service configured no defaults of its own.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:                userID,
		DefaultCurrency:       DefaultCurrency,
		OnUnsupportedCurrency: CurrencyFallback,
	}
}

// ForUser copies service-wide default preferences onto a specific user.
func (p *Preferences) ForUser(userID string) *Preferences {
	cp := *p
	cp.UserID = userID
	return &cp
}
