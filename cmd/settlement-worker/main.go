package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/internal/fraud"
	"github.com/tradebazaar/finance-backend/internal/limits"
	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/internal/withdrawals"
	"github.com/tradebazaar/finance-backend/pkg/config"
	"github.com/tradebazaar/finance-backend/pkg/db"
	"github.com/tradebazaar/finance-backend/pkg/logger"
	"github.com/tradebazaar/finance-backend/pkg/metrics"
	"github.com/tradebazaar/finance-backend/pkg/migrate"
	"github.com/tradebazaar/finance-backend/pkg/payout"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	payoutClient, err := payout.NewClient(cfg.Payout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payout client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	auditor := audit.NewRecorder(dbClient.DB())

	walletService, err := wallet.NewService(wallet.NewRepository(dbClient.DB()), dbClient, auditor, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	limitsService, err := limits.NewService(limits.NewRepository(dbClient.DB()), dbClient, auditor, cfg.Limits)
	if err != nil {
		logg.Error(context.Background(), "failed to create limits service", err)
		os.Exit(1)
	}
	fraudService, err := fraud.NewService(fraud.NewRepository(dbClient.DB()), dbClient, auditor, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create fraud service", err)
		os.Exit(1)
	}

	withdrawalsRepo := withdrawals.NewRepository(dbClient.DB())
	withdrawalsService, err := withdrawals.NewService(
		withdrawalsRepo,
		dbClient,
		walletService,
		limitsService,
		payoutClient,
		fraudService,
		auditor,
		logg,
		cfg.Withdrawals,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create withdrawals service", err)
		os.Exit(1)
	}

	worker, err := withdrawals.NewWorker(withdrawalsService, withdrawalsRepo, logg, cfg.Withdrawals.PollInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting settlement worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "settlement worker shutting down gracefully")
}
