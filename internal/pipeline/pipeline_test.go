package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/asemenov/finledger/internal/domain"
	"github.com/asemenov/finledger/internal/ledger"
	"github.com/asemenov/finledger/internal/pipeline"
	"github.com/asemenov/finledger/internal/store/inmemory"
)

const testUser = "user-1"

type countingInvalidator struct {
	calls int
	users []string
}

func (c *countingInvalidator) InvalidateUser(ctx context.Context, userID string) error {
	c.calls++
	c.users = append(c.users, userID)
	return nil
}

func (c *countingInvalidator) Close() error { return nil }

type capturingExporter struct {
	batches [][]*domain.Transaction
}

func (e *capturingExporter) ExportBatch(ctx context.Context, userID string, txs []*domain.Transaction) error {
	e.batches = append(e.batches, txs)
	return nil
}

func newImporter(s *inmemory.Store, inv *countingInvalidator, exp pipeline.Exporter) *pipeline.Importer {
	log := zerolog.Nop()
	return pipeline.New(
		ledger.NewResolver(s.Accounts(), log),
		ledger.NewWriter(s.Transactions(), log),
		s.Preferences(),
		inv,
		exp,
		nil,
		log,
	)
}

func newImporterWithDefaults(s *inmemory.Store, defaults *domain.Preferences) *pipeline.Importer {
	log := zerolog.Nop()
	return pipeline.New(
		ledger.NewResolver(s.Accounts(), log),
		ledger.NewWriter(s.Transactions(), log),
		s.Preferences(),
		&countingInvalidator{},
		nil,
		defaults,
		log,
	)
}

func TestImportBatch_ScenarioPartialSuccess(t *testing.T) {
	s := inmemory.New()
	inv := &countingInvalidator{}
	imp := newImporter(s, inv, nil)
	ctx := context.Background()

	res, err := imp.ImportBatch(ctx, pipeline.BatchInput{
		UserID:         testUser,
		TargetCurrency: "USD",
		Rows: []map[string]any{
			{"amount": "$50.00", "date": "2026-01-02", "description": "Paid to X", "type": "EXPENSE"},
			{"amount": "-5", "description": "bad"},
		},
	})
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if res.Summary != (pipeline.Summary{Total: 2, Successful: 1, Failed: 1}) {
		t.Errorf("Summary = %+v, want {2 1 1}", res.Summary)
	}
	if !res.Results[0].Success || res.Results[0].Description != "Paid to X" {
		t.Errorf("row 0 = %+v, want success for Paid to X", res.Results[0])
	}
	if res.Results[0].TransactionID == "" {
		t.Error("row 0 missing transaction id")
	}
	if res.Results[1].Success || res.Results[1].Error != "Invalid amount" {
		t.Errorf("row 1 = %+v, want failure with Invalid amount", res.Results[1])
	}

	accounts, err := s.ListAccounts(ctx, testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1 USD wallet", len(accounts))
	}
	if want := decimal.RequireFromString("-50.00"); !accounts[0].Balance.Equal(want) {
		t.Errorf("final balance = %s, want %s", accounts[0].Balance, want)
	}
}

func TestImportBatch_OrderPreserved(t *testing.T) {
	s := inmemory.New()
	imp := newImporter(s, &countingInvalidator{}, nil)

	res, err := imp.ImportBatch(context.Background(), pipeline.BatchInput{
		UserID:         testUser,
		TargetCurrency: "USD",
		Rows: []map[string]any{
			{"amount": "10", "description": "first entry"},
			{"amount": "oops", "description": "second entry"},
			{"amount": "30", "description": "third entry"},
		},
	})
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	wantSuccess := []bool{true, false, true}
	for idx, want := range wantSuccess {
		if res.Results[idx].Success != want {
			t.Errorf("result[%d].Success = %v, want %v", idx, res.Results[idx].Success, want)
		}
	}
	if res.Results[0].Description != "first entry" || res.Results[2].Description != "third entry" {
		t.Errorf("results out of input order: %+v", res.Results)
	}
}

func TestImportBatch_BatchLevelFailures(t *testing.T) {
	s := inmemory.New()
	imp := newImporter(s, &countingInvalidator{}, nil)
	ctx := context.Background()

	t.Run("no user", func(t *testing.T) {
		_, err := imp.ImportBatch(ctx, pipeline.BatchInput{Rows: []map[string]any{{"amount": "1"}}})
		if !errors.Is(err, domain.ErrNoUser) {
			t.Errorf("error = %v, want ErrNoUser", err)
		}
	})

	t.Run("nil rows", func(t *testing.T) {
		_, err := imp.ImportBatch(ctx, pipeline.BatchInput{UserID: testUser})
		if !errors.Is(err, domain.ErrInvalidBatch) {
			t.Errorf("error = %v, want ErrInvalidBatch", err)
		}
	})

	t.Run("empty batch is valid", func(t *testing.T) {
		res, err := imp.ImportBatch(ctx, pipeline.BatchInput{UserID: testUser, Rows: []map[string]any{}, TargetCurrency: "USD"})
		if err != nil {
			t.Fatalf("error = %v, want nil", err)
		}
		if res.Summary.Total != 0 {
			t.Errorf("Summary.Total = %d, want 0", res.Summary.Total)
		}
	})
}

func TestImportBatch_RejectPolicyFailsRowsNotRequest(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	if err := s.PutPreferences(ctx, &domain.Preferences{
		UserID:                testUser,
		DefaultCurrency:       "USD",
		OnUnsupportedCurrency: domain.CurrencyReject,
	}); err != nil {
		t.Fatal(err)
	}
	imp := newImporter(s, &countingInvalidator{}, nil)

	res, err := imp.ImportBatch(ctx, pipeline.BatchInput{
		UserID:         testUser,
		TargetCurrency: "ZZZ",
		Rows: []map[string]any{
			{"amount": "10", "description": "row one"},
			{"amount": "20", "description": "row two"},
		},
	})
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}
	if res.Summary.Failed != 2 || res.Summary.Successful != 0 {
		t.Errorf("Summary = %+v, want both rows failed", res.Summary)
	}
	for idx, r := range res.Results {
		if r.Success {
			t.Errorf("result[%d] succeeded without a destination wallet", idx)
		}
	}
}

func TestImportBatch_ConfiguredDefaultsApplyWithoutStoredPreferences(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	imp := newImporterWithDefaults(s, &domain.Preferences{
		DefaultCurrency:       "USD",
		OnUnsupportedCurrency: domain.CurrencyReject,
	})

	t.Run("reject default refuses unsupported currency", func(t *testing.T) {
		res, err := imp.ImportBatch(ctx, pipeline.BatchInput{
			UserID:         testUser,
			TargetCurrency: "ZZZ",
			Rows:           []map[string]any{{"amount": "10", "description": "row one"}},
		})
		if err != nil {
			t.Fatalf("ImportBatch failed: %v", err)
		}
		if res.Summary.Failed != 1 {
			t.Fatalf("Summary = %+v, want the row rejected", res.Summary)
		}
		if !strings.Contains(res.Results[0].Error, domain.ErrUnsupportedCurrency.Error()) {
			t.Errorf("row error = %q, want unsupported currency", res.Results[0].Error)
		}
	})

	t.Run("supported currency still imports", func(t *testing.T) {
		res, err := imp.ImportBatch(ctx, pipeline.BatchInput{
			UserID:         testUser,
			TargetCurrency: "USD",
			Rows:           []map[string]any{{"amount": "10", "description": "row one"}},
		})
		if err != nil {
			t.Fatalf("ImportBatch failed: %v", err)
		}
		if res.Summary.Successful != 1 {
			t.Errorf("Summary = %+v, want success", res.Summary)
		}
	})

	t.Run("stored preferences override configured defaults", func(t *testing.T) {
		if err := s.PutPreferences(ctx, &domain.Preferences{
			UserID:                testUser,
			DefaultCurrency:       "GBP",
			OnUnsupportedCurrency: domain.CurrencyFallback,
		}); err != nil {
			t.Fatal(err)
		}

		res, err := imp.ImportBatch(ctx, pipeline.BatchInput{
			UserID:         testUser,
			TargetCurrency: "ZZZ",
			Rows:           []map[string]any{{"amount": "10", "description": "row one"}},
		})
		if err != nil {
			t.Fatalf("ImportBatch failed: %v", err)
		}
		if res.Summary.Successful != 1 {
			t.Fatalf("Summary = %+v, want fallback import", res.Summary)
		}
		if _, err := s.FindAccountByCurrency(ctx, testUser, "GBP"); err != nil {
			t.Errorf("no GBP wallet created: %v", err)
		}
	})
}

func TestImportBatch_SingleInvalidationPerBatch(t *testing.T) {
	s := inmemory.New()
	inv := &countingInvalidator{}
	imp := newImporter(s, inv, nil)

	_, err := imp.ImportBatch(context.Background(), pipeline.BatchInput{
		UserID:         testUser,
		TargetCurrency: "USD",
		Rows: []map[string]any{
			{"amount": "1", "description": "entry a"},
			{"amount": "2", "description": "entry b"},
			{"amount": "3", "description": "entry c"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if inv.calls != 1 {
		t.Errorf("invalidator called %d times, want once per batch", inv.calls)
	}
	if len(inv.users) != 1 || inv.users[0] != testUser {
		t.Errorf("invalidated users = %v, want [%s]", inv.users, testUser)
	}
}

func TestImportBatch_ExporterReceivesOnlyCommitted(t *testing.T) {
	s := inmemory.New()
	exp := &capturingExporter{}
	imp := newImporter(s, &countingInvalidator{}, exp)

	_, err := imp.ImportBatch(context.Background(), pipeline.BatchInput{
		UserID:         testUser,
		TargetCurrency: "USD",
		Rows: []map[string]any{
			{"amount": "5", "description": "good row"},
			{"amount": "zero", "description": "bad row"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(exp.batches) != 1 {
		t.Fatalf("exporter called %d times, want 1", len(exp.batches))
	}
	if len(exp.batches[0]) != 1 {
		t.Errorf("exported %d transactions, want only the committed row", len(exp.batches[0]))
	}
}

func TestImportBatch_CounterpartyFallsBackToDescription(t *testing.T) {
	s := inmemory.New()
	imp := newImporter(s, &countingInvalidator{}, nil)
	ctx := context.Background()

	res, err := imp.ImportBatch(ctx, pipeline.BatchInput{
		UserID:         testUser,
		TargetCurrency: "USD",
		Rows:           []map[string]any{{"amount": "5", "description": "Grocery Run"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	tx, err := s.GetTransaction(ctx, testUser, res.Results[0].TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Counterparty != "Grocery Run" {
		t.Errorf("Counterparty = %q, want description fallback", tx.Counterparty)
	}
}
