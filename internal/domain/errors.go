package domain

import "errors"

var (
	// ErrNoUser means the batch arrived without an authenticated user
	// identifier. The whole request is rejected before any row runs.
	ErrNoUser = errors.New("no authenticated user")

	// ErrInvalidBatch means the batch input shape is malformed.
	ErrInvalidBatch = errors.New("invalid batch input")

	// ErrAccountNotFound is returned by account lookups.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned by transaction lookups.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrPreferencesNotFound means the user never saved preferences; callers
	// substitute their configured defaults.
	ErrPreferencesNotFound = errors.New("preferences not found")

	// ErrUnsupportedCurrency is returned by the resolver under the reject
	// policy when the requested currency is outside the supported set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)
