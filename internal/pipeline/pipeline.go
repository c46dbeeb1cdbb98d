// Package pipeline drives the batch import: normalize each raw row, resolve
// the destination wallet, commit the ledger write, and account for every
// row's fate without letting one bad row abort the batch.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/asemenov/finledger/internal/cache"
	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/ledger"
	"github.com/asemenov/finledger/internal/normalize"
	"github.com/asemenov/finledger/internal/store"
)

// Exporter receives the committed transactions of a batch after the ledger
// writes are final. Export failures never affect ledger state.
type Exporter interface {
	ExportBatch(ctx context.Context, userID string, txs []*domain.Transaction) error
}

// Importer is the batch import orchestrator.
//
// Rows run sequentially: each ledger write increments the shared account
// balance, and running rows concurrently within one batch would only race on
// that single resource. Increments commute, so interleaving with *other*
// batches is safe.
//
// Re-importing the same statement is NOT idempotent: every call appends new
// transaction rows. There is no content-hash deduplication; callers who need
// it must guard upstream.
type Importer struct {
	resolver    *ledger.Resolver
	writer      *ledger.Writer
	prefs       store.PreferencesRepository
	invalidator cache.Invalidator
	exporter    Exporter            // optional
	defaults    *domain.Preferences // optional service-wide defaults
	log         zerolog.Logger
	now         func() time.Time
}

// New wires an importer. exporter may be nil when no analytics sink is
// configured. defaults applies to users with no stored preferences; nil
// falls back to domain.DefaultPreferences.
func New(resolver *ledger.Resolver, writer *ledger.Writer, prefs store.PreferencesRepository, invalidator cache.Invalidator, exporter Exporter, defaults *domain.Preferences, log zerolog.Logger) *Importer {
	return &Importer{
		resolver:    resolver,
		writer:      writer,
		prefs:       prefs,
		invalidator: invalidator,
		exporter:    exporter,
		defaults:    defaults,
		log:         log,
		now:         time.Now,
	}
}

func (i *Importer) defaultPrefs(userID string) *domain.Preferences {
	if i.defaults != nil {
		return i.defaults.ForUser(userID)
	}
	return domain.DefaultPreferences(userID)
}

// ImportBatch processes every row independently and returns a per-row result
// plus an aggregate summary. Only a missing user or a malformed batch shape
// fails the whole request; row-level problems are captured in that row's
// result and the batch continues.
func (i *Importer) ImportBatch(ctx context.Context, in BatchInput) (*BatchResult, error) {
	if in.UserID == "" {
		return nil, domain.ErrNoUser
	}
	if in.Rows == nil {
		return nil, domain.ErrInvalidBatch
	}

	prefs, err := i.prefs.GetPreferences(ctx, in.UserID)
	if errors.Is(err, domain.ErrPreferencesNotFound) {
		prefs = i.defaultPrefs(in.UserID)
	} else if err != nil {
		i.log.Warn().Err(err).Str("user_id", in.UserID).Msg("Preferences unavailable, using defaults")
		prefs = i.defaultPrefs(in.UserID)
	}

	result := &BatchResult{
		Results: make([]RowResult, 0, len(in.Rows)),
		Summary: Summary{Total: len(in.Rows)},
	}

	account, resolveErr := i.resolver.Resolve(ctx, in.UserID, in.TargetCurrency, in.AccountID, prefs)
	if resolveErr != nil {
		// No destination wallet: every row fails, but the caller still gets
		// a complete accounting rather than a rejected request.
		for range in.Rows {
			result.Results = append(result.Results, RowResult{
				Success:     false,
				Description: "Transaction",
				Error:       resolveErr.Error(),
			})
		}
		result.Summary.Failed = len(in.Rows)
		return result, nil
	}

	var committed []*domain.Transaction
	for idx, row := range in.Rows {
		res, tx := i.importRow(ctx, in.UserID, account, row)
		result.Results = append(result.Results, res)
		if res.Success {
			result.Summary.Successful++
			committed = append(committed, tx)
		} else {
			result.Summary.Failed++
			i.log.Debug().Int("row", idx).Str("reason", res.Error).Msg("Row failed")
		}
	}

	i.log.Info().
		Str("user_id", in.UserID).
		Str("account_id", account.ID).
		Int("total", result.Summary.Total).
		Int("successful", result.Summary.Successful).
		Int("failed", result.Summary.Failed).
		Msg("Batch import finished")

	// One invalidation per batch, after the last row committed.
	if err := i.invalidator.InvalidateUser(ctx, in.UserID); err != nil {
		i.log.Warn().Err(err).Str("user_id", in.UserID).Msg("Cache invalidation failed")
	}

	if i.exporter != nil && len(committed) > 0 {
		if err := i.exporter.ExportBatch(ctx, in.UserID, committed); err != nil {
			i.log.Warn().Err(err).Msg("Analytics export failed")
		}
	}

	return result, nil
}

func (i *Importer) importRow(ctx context.Context, userID string, account *domain.Account, row map[string]any) (RowResult, *domain.Transaction) {
	candidate, reason := normalize.Row(row, i.now)
	if reason != "" {
		return RowResult{Success: false, Description: "Transaction", Error: reason}, nil
	}

	counterparty := candidate.Counterparty
	if counterparty == "" {
		counterparty = candidate.Description
	}

	tx := &domain.Transaction{
		UserID:            userID,
		AccountID:         account.ID,
		Amount:            candidate.Amount,
		Type:              candidate.Type,
		Date:              candidate.Date,
		Description:       candidate.Description,
		Counterparty:      counterparty,
		Category:          candidate.Category,
		IsRecurring:       candidate.IsRecurring,
		RecurringInterval: candidate.RecurringInterval,
	}

	if err := i.writer.Create(ctx, tx); err != nil {
		return RowResult{Success: false, Description: candidate.Description, Error: err.Error()}, nil
	}

	return RowResult{Success: true, Description: candidate.Description, TransactionID: tx.ID}, tx
}
