package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradebazaar/finance-backend/api/routes"
	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/internal/fraud"
	"github.com/tradebazaar/finance-backend/internal/limits"
	"github.com/tradebazaar/finance-backend/internal/refunds"
	"github.com/tradebazaar/finance-backend/internal/returns"
	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/internal/withdrawals"
	"github.com/tradebazaar/finance-backend/pkg/config"
	"github.com/tradebazaar/finance-backend/pkg/courier"
	"github.com/tradebazaar/finance-backend/pkg/db"
	"github.com/tradebazaar/finance-backend/pkg/logger"
	"github.com/tradebazaar/finance-backend/pkg/metrics"
	"github.com/tradebazaar/finance-backend/pkg/migrate"
	"github.com/tradebazaar/finance-backend/pkg/payout"
	"github.com/tradebazaar/finance-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	payoutClient, err := payout.NewClient(cfg.Payout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payout client", err)
		os.Exit(1)
	}
	courierClient, err := courier.NewClient(cfg.Courier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build courier client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	auditor := audit.NewRecorder(dbClient.DB())
	auditReader := audit.NewReader(dbClient.DB())

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
	withdrawalsService, err := withdrawals.NewService(
		withdrawals.NewRepository(dbClient.DB()),
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
	returnsService, err := returns.NewService(returns.NewRepository(dbClient.DB()), dbClient, courierClient, auditor)
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}
	refundsService, err := refunds.NewService(dbClient, walletService, returnsService, auditor)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			walletService,
			withdrawalsService,
			limitsService,
			fraudService,
			returnsService,
			refundsService,
			auditReader,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
