package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/url-frontier/internal/app"
	"github.com/JakeFAU/url-frontier/internal/config"
)

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the frontier HTTP API",
		Long: `Starts the HTTP API that accepts crawl batches, leases URLs to
crawler clients and serves score lookups. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			if err := a.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run app: %w", err)
			}
			return nil
		},
	}
}
