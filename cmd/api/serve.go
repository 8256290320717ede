package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ibrahimkeyboad/spendguard/internal/adapter/handler"
	"github.com/ibrahimkeyboad/spendguard/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/spendguard/internal/adapter/storage"
	"github.com/ibrahimkeyboad/spendguard/internal/adapter/storage/inmemory"
	"github.com/ibrahimkeyboad/spendguard/internal/core/config"
	"github.com/ibrahimkeyboad/spendguard/internal/core/escalation"
	"github.com/ibrahimkeyboad/spendguard/internal/core/ledger"
	"github.com/ibrahimkeyboad/spendguard/internal/core/notifications"
	"github.com/ibrahimkeyboad/spendguard/internal/core/profile"
	"github.com/ibrahimkeyboad/spendguard/internal/core/recorder"
	"github.com/ibrahimkeyboad/spendguard/internal/core/risk"
	"github.com/ibrahimkeyboad/spendguard/internal/core/worker"
)

// backend is the persistence the service runs on, Postgres or in-memory.
type backend interface {
	risk.Store
	profile.Store
	ledger.FundStore
	handler.HistoryReader
	middleware.IdempotencyStore
}

// pgBackend stitches the Postgres repositories into one backend.
type pgBackend struct {
	*storage.UserRepository
	*storage.TransactionRepository
	*storage.IdempotencyRepository
}

func setupLogger(level slog.Level) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	db, err := storage.ConnectDB(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	slog.Info("Schema applied")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// 2. Setup Logger
	setupLogger(cfg.LogLevel)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Storage
	var (
		store  backend
		dbPool *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		dbPool, err = storage.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer dbPool.Close()
		if err := storage.Migrate(ctx, dbPool); err != nil {
			return err
		}
		store = pgBackend{
			UserRepository:        storage.NewUserRepository(dbPool),
			TransactionRepository: storage.NewTransactionRepository(dbPool),
			IdempotencyRepository: storage.NewIdempotencyRepository(dbPool),
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store seeded with the demo user")
		mem := inmemory.NewStore()
		if err := mem.CreateUser(ctx, inmemory.DemoUser()); err != nil {
			return err
		}
		store = mem
	}

	// 4. Audit recorder
	var (
		rec    recorder.Recorder = recorder.NewNoopRecorder()
		alerts *handler.AlertHandler
	)
	if cfg.SQLitePath != "" {
		sqliteRec, err := recorder.NewSQLiteRecorder(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open audit recorder: %w", err)
		}
		rec = sqliteRec
		alerts = &handler.AlertHandler{Alerts: sqliteRec}
	}
	defer rec.Close()

	// 5. Notifications, with the outbox worker when Postgres is available
	var notifier notifications.Notifier = notifications.LogNotifier{}
	var webhookWorker *worker.WebhookWorker
	switch {
	case cfg.WebhookURL != "" && dbPool != nil:
		queue := storage.NewWebhookQueue(dbPool)
		notifier = notifications.NewOutboxNotifier(cfg.WebhookURL, queue)
		webhookWorker = worker.NewWebhookWorker(queue, cfg.WebhookSecret)
		if err := webhookWorker.Start(ctx, cfg.WorkerSchedule); err != nil {
			return err
		}
		defer webhookWorker.Stop()
	case cfg.WebhookURL != "":
		notifier = notifications.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret)
	}

	// 6. Core services
	var classifier risk.Classifier
	if strings.EqualFold(cfg.ClassifierMode, config.ClassifierHTTP) {
		classifier = risk.NewHTTPClassifier(cfg.ClassifierURL)
	} else {
		classifier = risk.NewProcessClassifier(cfg.ClassifierCommand, cfg.ClassifierScript)
	}

	coordinator := escalation.NewCoordinator(cfg.Policy, notifier, rec)
	riskService := risk.NewService(store, classifier, coordinator, risk.Options{
		MonthlyCeiling:    cfg.Policy.MonthlyCeiling,
		ClassifierTimeout: cfg.ClassifierTimeout,
	})
	ledgerService := ledger.NewService(store, rec)

	app := handler.NewApp(handler.Handlers{
		Transactions: &handler.TransactionHandler{Risk: riskService, History: store},
		Users:        &handler.UserHandler{Profile: profile.NewService(store)},
		Emergency:    &handler.EmergencyHandler{Coordinator: coordinator, Ledger: ledgerService},
		Investments:  &handler.InvestmentHandler{Ledger: ledgerService},
		Alerts:       alerts,
	}, store)

	// 7. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port, "classifier", cfg.ClassifierMode)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-stop:
		slog.Info("Shutting down server...")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	}

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	slog.Info("Server exited")
	return nil
}
