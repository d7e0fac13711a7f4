package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
)

var migrateStatus bool

// migrateCmd creates the "migrate" subcommand.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is not set")
			}

			pgCfg := cfg.Storage.Postgres
			pgCfg.MigrateOnStart = false
			store, err := storage.NewPostgresStore(context.Background(), pgCfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if migrateStatus {
				return storage.MigrationStatus(store.Pool())
			}
			if err := storage.Migrate(store.Pool(), logger); err != nil {
				return err
			}
			fmt.Println("✅ Schema is up to date")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateStatus, "status", false, "print migration status instead of applying")

	return cmd
}
