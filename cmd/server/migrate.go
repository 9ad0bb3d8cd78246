package main

import (
	"github.com/spf13/cobra"

	"github.com/aimd54/component-directory/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		return repository.Migrate(cfg.Database.Postgres.URL(), log)
	},
}
