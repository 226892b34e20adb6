/*
Package main is the entry point for expensectl, the expense tracker admin CLI.

Usage:

	expensectl [command]

Available Commands:

	seed         Generate sample transactions and budgets for a user
	predict      Classify a note with the configured categories
	retrain      Fit the classifier on a user's history and report the outcome
	export       Write a user's transactions as CSV
	sheets-auth  Authorize the Google Sheets mirror with a user account
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

type app struct {
	cfg    *config.Config
	logger *log.Logger
	dbPath string
}

func (a *app) openRepo() (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.dbPath, err)
	}
	return repo, nil
}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	a := &app{cfg: cfg, logger: cli.SetupLoggerTo(os.Stderr, cfg, "expensectl")}

	rootCmd := &cobra.Command{
		Use:           "expensectl",
		Short:         "Administer the expense tracker database and classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", cfg.SQLiteDBPath, "SQLite database path")

	rootCmd.AddCommand(
		newSeedCmd(a),
		newPredictCmd(a),
		newRetrainCmd(a),
		newExportCmd(a),
		newSheetsAuthCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
