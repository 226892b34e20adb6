package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/sheets"
	gsheet "expensetracker/internal/sheets/google"
	mem "expensetracker/internal/sheets/memory"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting sync-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	m := metrics.New()
	mirror := mirrorFromConfig(logger, cfg)

	broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPAlertQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer broker.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize,
		worker.WithPollInterval(cfg.SyncInterval),
		worker.WithMirrorRecorder(m))

	if err := syncWorker.SyncCategories(ctx, cli.Categories(logger, cfg)); err != nil {
		logger.Error("Failed to sync categories", log.FieldError, err)
	}
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}
	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", log.FieldError, err)
		os.Exit(1)
	}

	alertWorker := worker.NewAlertWorker(cli.Notifier(logger, cfg))

	var wg sync.WaitGroup
	consume := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "queue", name, log.FieldError, err)
			}
		}()
	}
	consume(cfg.AMQPQueue, func(ctx context.Context) error {
		return broker.ConsumeTransactionSync(ctx, syncWorker.HandleSyncMessage)
	})
	if cfg.AMQPAlertQueue != "" {
		consume(cfg.AMQPAlertQueue, func(ctx context.Context) error {
			return broker.ConsumeBudgetAlerts(ctx, alertWorker.HandleBudgetAlert)
		})
	} else {
		logger.Info("Alert queue not configured, budget alerts are not consumed")
	}

	cli.WaitForShutdown(ctx, done)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := syncWorker.Stop(stopCtx); err != nil {
		logger.Warn("Sync worker did not stop in time", log.FieldError, err)
	}
	wg.Wait()
	logger.Info("Worker shutdown complete")
}

// mirrorFromConfig returns the Google Sheets mirror when a spreadsheet is
// configured and an in-memory one otherwise.
func mirrorFromConfig(logger *log.Logger, cfg *config.Config) sheets.TransactionMirror {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, mirroring to memory")
		return mem.New()
	}
	client, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
