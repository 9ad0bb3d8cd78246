package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one manual refresh of every non-archived package",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		runLog, err := a.refresh.RunManual(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s %s: %d processed, %d succeeded, %d failed\n",
			runLog.RunID, runLog.Status, runLog.PackagesProcessed, runLog.PackagesSucceeded, runLog.PackagesFailed)
		for _, e := range runLog.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", e.PackageName, e.Error)
		}
		return nil
	},
}
