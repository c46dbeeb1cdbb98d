package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asemenov/finledger/internal/analytics"
	"github.com/asemenov/finledger/internal/api"
	"github.com/asemenov/finledger/internal/cache"
	"github.com/asemenov/finledger/internal/config"
	"github.com/asemenov/finledger/internal/ledger"
	"github.com/asemenov/finledger/internal/logger"
	"github.com/asemenov/finledger/internal/pipeline"
	"github.com/asemenov/finledger/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.LogLevel)

	if cfg.DatabaseDSN == "" {
		log.Fatal().Msg("DATABASE_DSN is required")
	}
	st, err := postgres.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := st.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	var invalidator cache.Invalidator = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisInv, err := cache.NewRedis(cfg.RedisAddr, log)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to redis")
		}
		defer redisInv.Close()
		invalidator = redisInv
	} else {
		log.Warn().Msg("No REDIS_ADDR configured, cache invalidation disabled")
	}

	ctx := context.Background()

	var exporter pipeline.Exporter
	if cfg.BQProject != "" {
		bq, err := analytics.NewBigQueryExporter(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create analytics exporter")
		}
		defer bq.Close()
		exporter = bq
	} else {
		log.Warn().Msg("No BQ_PROJECT configured, analytics export disabled")
	}

	defaults := cfg.DefaultPreferences()
	resolver := ledger.NewResolver(st.Accounts(), log)
	writer := ledger.NewWriter(st.Transactions(), log)
	importer := pipeline.New(resolver, writer, st.Preferences(), invalidator, exporter, defaults, log)

	srv := api.New(importer, writer, st, invalidator, defaults, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
