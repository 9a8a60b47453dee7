package main

import (
	"context"
	"database/sql"
	"fmt"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	"product-catalog/internal/logger"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tooling",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending schema migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.LoadFrom(opts.envFile)
				log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
				if err != nil {
					return err
				}
				defer log.Sync()

				return withDatabase(cmd.Context(), cfg, func(db *sql.DB) error {
					if err := database.RunMigrations(db, log); err != nil {
						return err
					}
					version, err := database.MigrationVersion(db)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.LoadFrom(opts.envFile)
				return withDatabase(cmd.Context(), cfg, database.MigrationStatus)
			},
		},
	)
	return cmd
}

func withDatabase(ctx context.Context, cfg *config.Config, fn func(db *sql.DB) error) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}
