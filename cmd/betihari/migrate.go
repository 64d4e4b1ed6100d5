package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"betihari-backend/pkg/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Long: `Apply the embedded schema migrations to the PostgreSQL store.

The local file store needs no migrations and the command is a no-op for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.GetDatabase(ctx, database.DatabaseConfig{
				UseLocalDB:   cfg.UseLocalDB,
				LocalDataDir: cfg.LocalDataDir,
				PostgresDSN:  cfg.PostgresDSN,
				Debug:        cfg.Debug,
			})
			if err != nil {
				return fmt.Errorf("failed to open content store: %w", err)
			}
			defer database.ClosePool()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
