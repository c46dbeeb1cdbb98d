// Command import runs one statement through the pipeline from the terminal.
// Sources are a local CSV, a local text statement, or a gs:// URI; --dry-run
// imports into an in-memory store so a statement can be previewed without
// touching the database.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/asemenov/finledger/internal/analytics"
	"github.com/asemenov/finledger/internal/cache"
	"github.com/asemenov/finledger/internal/config"
	"github.com/asemenov/finledger/internal/extract"
	"github.com/asemenov/finledger/internal/ledger"
	"github.com/asemenov/finledger/internal/logger"
	"github.com/asemenov/finledger/internal/pipeline"
	"github.com/asemenov/finledger/internal/statements"
	"github.com/asemenov/finledger/internal/store"
	"github.com/asemenov/finledger/internal/store/inmemory"
	"github.com/asemenov/finledger/internal/store/postgres"
)

func main() {
	var (
		userID     = flag.String("user", "", "user the transactions belong to (required)")
		source     = flag.String("source", "", "statement source: local path or gs:// URI (required unless querying)")
		currency   = flag.String("currency", "", "target currency code, e.g. USD")
		accountID  = flag.String("account", "", "explicit destination account ID")
		dryRun     = flag.Bool("dry-run", false, "import into an in-memory store and discard")
		queryStart = flag.String("query-start", "", "list exported analytics rows from this date (YYYY-MM-DD) instead of importing")
		queryEnd   = flag.String("query-end", "", "end date for --query-start")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	if *userID == "" {
		log.Fatal().Msg("--user is required")
	}

	if *queryStart != "" {
		if err := runQuery(ctx, cfg, *userID, *queryStart, *queryEnd); err != nil {
			log.Fatal().Err(err).Msg("Analytics query failed")
		}
		return
	}

	if *source == "" {
		log.Fatal().Msg("--source is required")
	}

	rows, err := loadRows(ctx, cfg, *source)
	if err != nil {
		log.Fatal().Err(err).Str("source", *source).Msg("Failed to load statement")
	}

	var st store.Store
	if *dryRun {
		st = inmemory.New()
	} else {
		if cfg.DatabaseDSN == "" {
			log.Fatal().Msg("DATABASE_DSN is required without --dry-run")
		}
		pg, err := postgres.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if err := pg.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		st = pg
	}

	var invalidator cache.Invalidator = cache.Noop{}
	if !*dryRun && cfg.RedisAddr != "" {
		redisInv, err := cache.NewRedis(cfg.RedisAddr, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisInv.Close()
		invalidator = redisInv
	}

	resolver := ledger.NewResolver(st.Accounts(), log)
	writer := ledger.NewWriter(st.Transactions(), log)
	importer := pipeline.New(resolver, writer, st.Preferences(), invalidator, nil, cfg.DefaultPreferences(), log)

	result, err := importer.ImportBatch(ctx, pipeline.BatchInput{
		UserID:         *userID,
		Rows:           rows,
		TargetCurrency: *currency,
		AccountID:      *accountID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("Failed to print result")
	}
	if *dryRun {
		log.Info().Msg("Dry run, nothing was persisted")
	}
}

// loadRows turns the source into keyed rows. CSV files are keyed by their
// header line; anything else is treated as line-oriented statement text and
// goes through the extractor chain.
func loadRows(ctx context.Context, cfg *config.Config, source string) ([]map[string]any, error) {
	log := logger.FromContext(ctx)

	var fetcher statements.Fetcher = statements.FileFetcher{}
	if strings.HasPrefix(source, "gs://") {
		fetcher = statements.NewGCSFetcher()
	}
	data, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(strings.ToLower(source), ".csv") {
		return csvRows(data)
	}

	chain := extract.NewChain(log,
		extract.LineExtractor{},
		extract.NewGemini(cfg.GeminiModel),
	)
	return extract.ToRows(ctx, chain, []extract.RawRow{extract.Lines(statements.ToLines(data))})
}

func csvRows(data []byte) ([]map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	var rows []map[string]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV record: %w", err)
		}
		row := make(map[string]any, len(header))
		for i, key := range header {
			if i < len(record) {
				row[key] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func runQuery(ctx context.Context, cfg *config.Config, userID, startStr, endStr string) error {
	if cfg.BQProject == "" {
		return fmt.Errorf("BQ_PROJECT is required for --query-start")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return fmt.Errorf("parse --query-start: %w", err)
	}
	end := time.Now()
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return fmt.Errorf("parse --query-end: %w", err)
		}
	}

	bq, err := analytics.NewBigQueryExporter(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable)
	if err != nil {
		return err
	}
	defer bq.Close()

	rows, err := bq.QueryByDateRange(ctx, userID, start, end)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
