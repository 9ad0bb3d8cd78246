package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aimd54/component-directory/internal/service/review"
)

var (
	reviewProvider string
	reviewModel    string
)

var reviewCmd = &cobra.Command{
	Use:   "review <package-id>",
	Short: "Run an AI review of one package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid package id %q", args[0])
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.review.Review(cmd.Context(), uint(id), review.Options{
			Provider: reviewProvider,
			Model:    reviewModel,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n%s\n", outcome.Package.Name, outcome.Verdict.Status, outcome.Verdict.Summary)
		for _, c := range outcome.Verdict.Criteria {
			mark := "PASS"
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "  [%s] %s  %s\n", mark, c.Name, c.Notes)
		}
		if outcome.Decision.Changed {
			fmt.Fprintf(out, "status: %s -> %s\n", outcome.Decision.From, outcome.Decision.To)
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for flag registration
	reviewCmd.Flags().StringVar(&reviewProvider, "provider", "", "AI provider (anthropic, openai, gemini)")
	reviewCmd.Flags().StringVar(&reviewModel, "model", "", "model name (default from config)")
}
