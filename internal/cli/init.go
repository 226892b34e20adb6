// Package cli provides the initialization shared by the binaries under cmd/.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/classifier"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/notify"
	"expensetracker/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is fine in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	return SetupLoggerTo(os.Stdout, cfg, component)
}

// SetupLoggerTo is SetupLogger writing to w.
func SetupLoggerTo(w io.Writer, cfg *config.Config, component string) *log.Logger {
	level := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Handler:   log.NewHandler(w, cfg.LogFormat, level),
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository, running pending migrations.
// Exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// Categories returns the configured category table: the YAML file when one is
// set, the built-in table otherwise. Exits the process on a bad file.
func Categories(logger *log.Logger, cfg *config.Config) []core.Category {
	if cfg.ClassifierCategoriesFile == "" {
		return classifier.DefaultCategories()
	}
	cats, err := classifier.LoadCategories(cfg.ClassifierCategoriesFile)
	if err != nil {
		logger.Error("Failed to load categories", log.FieldError, err, "path", cfg.ClassifierCategoriesFile)
		os.Exit(1)
	}
	return cats
}

// Notifier returns the SMTP notifier when mail is configured and the logging
// notifier otherwise.
func Notifier(logger *log.Logger, cfg *config.Config) notify.Notifier {
	if !cfg.MailEnabled() {
		logger.Info("Mail not configured, budget alerts will be logged")
		return notify.LogNotifier{}
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Server:   cfg.MailServer,
		Port:     cfg.MailPort,
		UseTLS:   cfg.MailUseTLS,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailDefaultSender,
	})
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before the returned channel closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until shutdown has been signalled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
