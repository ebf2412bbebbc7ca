package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locaith-ai/studio/db"
	"github.com/locaith-ai/studio/internal/config"
	"github.com/locaith-ai/studio/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := log.New(log.Config{})
		return db.Migrate(cfg.DatabaseURL(), logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
