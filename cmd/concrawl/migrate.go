package main

import (
	"fmt"

	"github.com/phrazzld/concrawl/internal/config"
	"github.com/phrazzld/concrawl/internal/platform/logger"
	"github.com/phrazzld/concrawl/internal/platform/postgres"
	"github.com/spf13/cobra"
)

var migrationCommands = []string{"up", "down", "reset", "status", "version"}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Manage the checkpoint database schema",
		Long:      "Runs a migration command against database.url. The default command is up.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			dbCfg, err := config.LoadDatabase(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log := logger.New(cmd.ErrOrStderr(), "info")
			log.Info("running migrations",
				"command", command,
				"database_url", postgres.MaskURL(dbCfg.URL))

			db, err := postgres.Open(cmd.Context(), dbCfg.URL)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database", "error", err)
				}
			}()

			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
}
