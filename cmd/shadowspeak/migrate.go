package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nexus-Agni/ShadowSpeak/internal/config"
	"github.com/Nexus-Agni/ShadowSpeak/internal/db"
	"github.com/Nexus-Agni/ShadowSpeak/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate: STORE_DRIVER is %q, migrations only apply to postgres", cfg.Driver)
			}
			log := logger.New(cfg.Env)

			pool, err := db.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			if status {
				return db.MigrationStatus(ctx, pool)
			}
			if err := db.RunMigrations(ctx, pool); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print migration status instead of applying")
	return cmd
}
