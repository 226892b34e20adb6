package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"expensetracker/internal/classifier"
	"expensetracker/internal/cli"
	"expensetracker/internal/services"
)

func (a *app) classifier() *classifier.Classifier {
	return classifier.New(classifier.Options{Categories: cli.Categories(a.logger, a.cfg)})
}

func newPredictCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "predict NOTE...",
		Short:   "Classify a note with the seed model",
		Example: `  expensectl predict "Uber ride downtown"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewClassifierService(a.classifier(), nil)
			p := svc.Predict(strings.Join(args, " "))
			fallback := ""
			if !p.Matched {
				fallback = " (fallback)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s%s\n", p.CategoryID, p.Category, fallback)
			return nil
		},
	}
}

func newRetrainCmd(a *app) *cobra.Command {
	var (
		userID int64
		probes []string
	)

	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Fit the classifier on a user's history and report the outcome",
		Long: `Load the user's most recent notes, retrain a classifier on them and show
how the probe notes are classified before and after. The model lives only in
this process; running servers keep their own.`,
		Example: `  expensectl retrain --user 1 --probe "bowling night"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			svc := services.NewClassifierService(a.classifier(), repo)
			before := make([]services.Prediction, len(probes))
			for i, note := range probes {
				before[i] = svc.Predict(note)
			}

			ok, err := svc.RetrainForUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "Not retrained: user %d needs at least %d labelled notes\n", userID, classifier.MinHistoryExamples)
				return nil
			}
			if info, ok := svc.Info(); ok {
				fmt.Fprintf(out, "Retrained on %d examples, %d features\n", info.Examples, info.Features)
			}
			for i, note := range probes {
				after := svc.Predict(note)
				fmt.Fprintf(out, "%q: %s -> %s\n", note, before[i].Category, after.Category)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User whose history is used")
	cmd.Flags().StringArrayVar(&probes, "probe", nil, "Note to classify before and after retraining (repeatable)")
	return cmd
}
