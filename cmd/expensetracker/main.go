package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/amqp"
	"expensetracker/internal/auth"
	"expensetracker/internal/cache"
	"expensetracker/internal/classifier"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	categories := cli.Categories(logger, cfg)
	if err := repo.SyncCategories(context.Background(), categories); err != nil {
		logger.Error("Failed to sync categories", log.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()

	clf := classifier.New(classifier.Options{Categories: categories, Recorder: m})
	if cfg.ClassifierWarmUp {
		if err := clf.WarmUp(); err != nil {
			logger.Warn("Classifier warm-up failed, will retry on first use", log.FieldError, err)
		}
	}

	reportCache := cache.NewLRUCache[any](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager()
	caches.Register(reportCache)
	caches.StartCleanup(time.Minute)

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPAlertQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without mirror sync", log.FieldError, err)
		} else {
			broker = c
			logger.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	notifier := cli.Notifier(logger, cfg)
	issuer := auth.NewIssuer(cfg.JWTSecretKey, cfg.JWTTTL)

	budgetOpts := []services.BudgetServiceOption{services.WithAlertRecorder(m)}
	txOpts := []services.TransactionServiceOption{services.WithTransactionRecorder(m)}
	if broker != nil {
		budgetOpts = append(budgetOpts, services.WithAlertPublisher(broker))
		txOpts = append(txOpts, services.WithSyncPublisher(broker))
	}

	reports := services.NewReportService(repo, reportCache, m)
	budgets := services.NewBudgetService(repo, decimal.NewFromFloat(cfg.BudgetAlertThreshold), notifier, budgetOpts...)
	txOpts = append(txOpts,
		services.WithAlertChecker(budgets),
		services.WithReportInvalidator(reports))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Users:        services.NewUserService(repo, issuer),
		Transactions: services.NewTransactionService(repo, clf, txOpts...),
		Budgets:      budgets,
		Reports:      reports,
		Classifier:   services.NewClassifierService(clf, repo),
		Issuer:       issuer,
		DB:           repo,
		Metrics:      m,
		Logger:       logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if broker != nil {
			if err := broker.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Warn("Database close failed", log.FieldError, err)
		}
	})

	logger.Info("Starting expense tracker",
		"port", cfg.Port,
		"categories", len(categories),
		"amqp", broker != nil,
		"mail", cfg.MailEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
