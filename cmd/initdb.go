package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/app"
	"github.com/JakeFAU/url-frontier/internal/config"
	"github.com/JakeFAU/url-frontier/internal/logging"
)

func newInitDBCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Creates the frontier table and index in Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return errors.New("db.dsn is required")
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			store, err := app.OpenPostgres(cmd.Context(), cfg, logger)
			if err != nil {
				return err //nolint:wrapcheck // already wrapped by OpenPostgres
			}
			defer store.Close()

			if err := store.CreateTables(cmd.Context()); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
			logger.Info("frontier schema ready", zap.String("table", cfg.DB.Table))
			return nil
		},
	}
}
