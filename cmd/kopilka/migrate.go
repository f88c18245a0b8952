package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kopilka/internal/config"
	"kopilka/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
