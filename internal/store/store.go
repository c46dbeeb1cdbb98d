// Package store defines the persistence boundary of the import pipeline.
// Implementations must provide the atomic multi-write primitive: a
// transaction row and its account balance delta commit together or not at
// all.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/asemenov/finledger/internal/domain"
)

// AccountRepository is the point lookup/create surface for currency wallets.
type AccountRepository interface {
	// GetAccount returns the account only if it belongs to userID.
	// Returns domain.ErrAccountNotFound otherwise.
	GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error)

	// FindAccountByCurrency returns the user's wallet in the given currency,
	// or domain.ErrAccountNotFound when none exists.
	FindAccountByCurrency(ctx context.Context, userID, currency string) (*domain.Account, error)

	CreateAccount(ctx context.Context, acc *domain.Account) error

	ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error)
}

// TransactionRepository persists ledger entries. The *WithBalanceDelta
// methods are the atomic unit: the row write and the balance increment on the
// owning account either both commit or neither does. The delta is applied as
// an increment, never as a read-then-write of the full balance.
type TransactionRepository interface {
	GetTransaction(ctx context.Context, userID, txID string) (*domain.Transaction, error)

	CreateWithBalanceDelta(ctx context.Context, tx *domain.Transaction, delta decimal.Decimal) error

	UpdateWithBalanceDelta(ctx context.Context, tx *domain.Transaction, delta decimal.Decimal) error
}

// PreferencesRepository stores per-user import preferences.
type PreferencesRepository interface {
	// GetPreferences returns stored preferences, or
	// domain.ErrPreferencesNotFound when the user has never saved any, so
	// the caller can apply its own configured defaults.
	GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error)

	PutPreferences(ctx context.Context, prefs *domain.Preferences) error
}

// Store bundles the repositories backed by one database.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Preferences() PreferencesRepository
}
