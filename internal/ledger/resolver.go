// Package ledger owns account resolution and the atomic ledger write path.
// It is the sole mutator of account balance state.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/store"
)

// Resolver selects or lazily creates the currency wallet a batch writes to.
type Resolver struct {
	accounts store.AccountRepository
	log      zerolog.Logger
}

// NewResolver creates a resolver over the given account repository.
func NewResolver(accounts store.AccountRepository, log zerolog.Logger) *Resolver {
	return &Resolver{accounts: accounts, log: log}
}

// Resolve returns the account to credit/debit for the requested currency.
//
// An explicit account id is honored only when it belongs to the user AND
// matches the requested currency exactly; otherwise it is discarded and
// resolution continues as if it were absent. Redirecting to a mismatched
// account would corrupt that account's balance in the wrong currency.
//
// An unsupported or missing currency follows prefs.OnUnsupportedCurrency:
// fall back to the user's default currency, or refuse with
// domain.ErrUnsupportedCurrency.
//
// Lookup-or-create is not transactional against concurrent imports for the
// same user+currency; a race can create a duplicate wallet. Subsequent
// lookups de-duplicate by picking the oldest wallet, which is acceptable at
// personal-import volumes.
func (r *Resolver) Resolve(ctx context.Context, userID, requestedCurrency, explicitAccountID string, prefs *domain.Preferences) (*domain.Account, error) {
	if userID == "" {
		return nil, domain.ErrNoUser
	}
	if prefs == nil {
		prefs = domain.DefaultPreferences(userID)
	}

	currency := domain.NormalizeCurrency(requestedCurrency)
	if !domain.SupportedCurrency(currency) {
		if prefs.OnUnsupportedCurrency == domain.CurrencyReject {
			return nil, fmt.Errorf("resolve account: %w: %q", domain.ErrUnsupportedCurrency, requestedCurrency)
		}
		fallback := domain.NormalizeCurrency(prefs.DefaultCurrency)
		if !domain.SupportedCurrency(fallback) {
			fallback = domain.DefaultCurrency
		}
		r.log.Warn().
			Str("requested", requestedCurrency).
			Str("fallback", fallback).
			Msg("Unsupported currency, falling back")
		currency = fallback
	}

	if explicitAccountID != "" {
		acc, err := r.accounts.GetAccount(ctx, userID, explicitAccountID)
		switch {
		case err == nil && acc.Currency == currency:
			return acc, nil
		case err == nil:
			r.log.Warn().
				Str("account_id", explicitAccountID).
				Str("account_currency", acc.Currency).
				Str("requested_currency", currency).
				Msg("Explicit account currency mismatch, discarding")
		case errors.Is(err, domain.ErrAccountNotFound):
			r.log.Warn().Str("account_id", explicitAccountID).Msg("Explicit account not found, discarding")
		default:
			return nil, fmt.Errorf("resolve account: %w", err)
		}
	}

	acc, err := r.accounts.FindAccountByCurrency(ctx, userID, currency)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("resolve account: %w", err)
	}

	acc = &domain.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      currency + " Wallet",
		Currency:  currency,
		Balance:   decimal.Zero,
		IsDefault: false,
	}
	if err := r.accounts.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("resolve account: create wallet: %w", err)
	}
	r.log.Info().
		Str("account_id", acc.ID).
		Str("currency", currency).
		Msg("Created currency wallet")
	return acc, nil
}
