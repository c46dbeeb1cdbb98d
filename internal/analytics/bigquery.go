// Package analytics streams committed transactions to BigQuery for the
// dashboard dataset. It is strictly downstream of the ledger: rows are
// exported after their atomic unit committed, and export failures are
// logged, never propagated into ledger state.
package analytics

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/asemenov/finledger/internal/domain"
)

const dateFormat = "2006-01-02"

// TransactionRow is the analytics table schema.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`
	AccountID     string `bigquery:"account_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`
	Amount          *big.Rat   `bigquery:"amount"` // NUMERIC, signed
	Type            string     `bigquery:"type"`

	Description  string              `bigquery:"description"`
	Counterparty bigquery.NullString `bigquery:"counterparty"`
	Category     string              `bigquery:"category"`

	IsRecurring bool              `bigquery:"is_recurring"`
	NextDate    bigquery.NullDate `bigquery:"next_recurring_date"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// BigQueryExporter streams batches into <dataset>.<table>.
type BigQueryExporter struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryExporter creates a client against the given project.
func NewBigQueryExporter(ctx context.Context, projectID, dataset, table string) (*BigQueryExporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("analytics: bigquery client: %w", err)
	}
	return &BigQueryExporter{client: client, dataset: dataset, table: table}, nil
}

// Close releases the underlying client.
func (e *BigQueryExporter) Close() error {
	return e.client.Close()
}

// ExportBatch streams the committed transactions of one import batch.
func (e *BigQueryExporter) ExportBatch(ctx context.Context, userID string, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	rows := make([]*TransactionRow, 0, len(txs))
	now := time.Now()
	for _, t := range txs {
		rows = append(rows, rowFromTransaction(t, now))
	}

	inserter := e.client.Dataset(e.dataset).Table(e.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("analytics: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// QueryByDateRange reads exported rows back, ordered by transaction date.
// Used by the inspection CLI.
func (e *BigQueryExporter) QueryByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*TransactionRow, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			account_id,
			transaction_date,
			amount,
			type,
			description,
			counterparty,
			category,
			is_recurring,
			next_recurring_date,
			exported_ts
		FROM %s.%s
		WHERE user_id = @user_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, exported_ts
	`, e.dataset, e.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: start.Format(dateFormat)},
		{Name: "end_date", Value: end.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("analytics: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

func rowFromTransaction(t *domain.Transaction, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   t.ID,
		UserID:          t.UserID,
		AccountID:       t.AccountID,
		TransactionDate: civil.DateOf(t.Date),
		Amount:          t.SignedAmount().Rat(),
		Type:            string(t.Type),
		Description:     t.Description,
		Category:        t.Category,
		IsRecurring:     t.IsRecurring,
		ExportedTS:      exportedAt,
	}
	if t.Counterparty != "" {
		row.Counterparty = bigquery.NullString{StringVal: t.Counterparty, Valid: true}
	}
	if t.NextRecurringDate != nil {
		row.NextDate = bigquery.NullDate{Date: civil.DateOf(*t.NextRecurringDate), Valid: true}
	}
	return row
}
