package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		userID int64
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's transactions as CSV",
		Example: `  expensectl export --user 1 > expenses.csv
  expensectl export --user 1 --output expenses.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			txs, err := repo.ListTransactions(ctx, userID)
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			cats, err := repo.ListCategories(ctx)
			if err != nil {
				return fmt.Errorf("list categories: %w", err)
			}
			names := make(map[core.CategoryID]string, len(cats))
			for _, c := range cats {
				names[c.ID] = c.Name
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := export.WriteTransactions(w, txs, func(id core.CategoryID) string { return names[id] }); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d transactions to %s\n", len(txs), output)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User whose transactions are exported")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
