package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/recurrence"
	"github.com/asemenov/finledger/internal/store"
)

// Writer persists one validated transaction and its balance delta as a
// single atomic unit. All balance mutation goes through here.
type Writer struct {
	txs store.TransactionRepository
	log zerolog.Logger
}

// NewWriter creates a ledger writer over the given transaction repository.
func NewWriter(txs store.TransactionRepository, log zerolog.Logger) *Writer {
	return &Writer{txs: txs, log: log}
}

// Create persists t and increments the owning account's balance by the
// signed amount. If either half fails, the store rolls the unit back and no
// partial state is observable.
func (w *Writer) Create(ctx context.Context, t *domain.Transaction) error {
	if t.UserID == "" {
		return domain.ErrNoUser
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	projectRecurrence(t)

	if err := w.txs.CreateWithBalanceDelta(ctx, t, t.SignedAmount()); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}

	w.log.Debug().
		Str("transaction_id", t.ID).
		Str("account_id", t.AccountID).
		Str("amount", t.Amount.String()).
		Str("type", string(t.Type)).
		Msg("Transaction committed")
	return nil
}

// Update edits an existing transaction. The balance adjustment is the
// difference between the new and old signed amounts, applied as one
// increment rather than a recompute, so concurrent writers of the same
// account cannot lose updates.
func (w *Writer) Update(ctx context.Context, t *domain.Transaction) error {
	if t.UserID == "" {
		return domain.ErrNoUser
	}

	old, err := w.txs.GetTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return fmt.Errorf("ledger update: %w", err)
	}
	// A transaction never moves between accounts through this path.
	t.AccountID = old.AccountID
	projectRecurrence(t)

	delta := t.SignedAmount().Sub(old.SignedAmount())
	if err := w.txs.UpdateWithBalanceDelta(ctx, t, delta); err != nil {
		return fmt.Errorf("ledger update: %w", err)
	}

	w.log.Debug().
		Str("transaction_id", t.ID).
		Str("delta", delta.String()).
		Msg("Transaction updated")
	return nil
}

// projectRecurrence derives NextRecurringDate. The projector returns its
// input unchanged when it cannot project; that counts as "no projection",
// so the invariant holds: the next date is set iff the transaction is
// recurring with a recognized interval.
func projectRecurrence(t *domain.Transaction) {
	if t.IsRecurring && t.RecurringInterval.Recognized() {
		next := recurrence.Next(t.Date, t.RecurringInterval)
		if !next.Equal(t.Date) {
			t.NextRecurringDate = &next
			return
		}
	}
	t.NextRecurringDate = nil
}
