package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "component-directory",
	Short:         "Directory of npm component packages with AI-assisted review.",
	Long:          `Serves the component package directory API, runs scheduled npm refreshes and performs AI reviews of submitted packages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.yaml, ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd, migrateCmd, refreshCmd, reviewCmd)
}
