package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"expensetracker/internal/cli"
	"expensetracker/internal/log"
	"expensetracker/internal/sample"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		userID int64
		count  int
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate sample transactions and budgets for a user",
		Long: `Insert randomly generated transactions dated over the last 90 days,
plus budgets for every category for this month and next month.`,
		Example: `  expensectl seed --user 1
  expensectl seed --user 1 --count 200 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			ctx := cmd.Context()
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.SyncCategories(ctx, cli.Categories(a.logger, a.cfg)); err != nil {
				return fmt.Errorf("sync categories: %w", err)
			}
			if _, err := repo.GetUser(ctx, userID); err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}

			gen := sample.NewGenerator(seed, time.Now())
			txs := gen.Transactions(userID, count)

			bar := progressbar.NewOptions(len(txs),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Seeding transactions"),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
			)

			created := 0
			for _, tx := range txs {
				if _, err := repo.CreateTransaction(ctx, tx); err != nil {
					a.logger.Warn("Failed to insert sample transaction", log.FieldError, err)
				} else {
					created++
				}
				_ = bar.Add(1)
			}

			budgets := 0
			for _, b := range gen.Budgets(userID) {
				if _, err := repo.UpsertBudget(ctx, b); err != nil {
					return fmt.Errorf("upsert budget: %w", err)
				}
				budgets++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %d transactions and %d budgets for user %d\n", created, budgets, userID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User ID to generate data for")
	cmd.Flags().IntVar(&count, "count", 50, "Number of transactions")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default: time based)")
	return cmd
}
