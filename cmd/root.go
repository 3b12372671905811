// Package cmd defines the CLI commands for the frontier executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/url-frontier/internal/config"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "URL frontier for a crowd-sourced web crawler.",
		Long: `frontier keeps one record per URL discovered by crawler clients,
merges their reports, and leases batches of the highest-scoring URLs back to
them for crawling.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (env vars use the FRONTIER_ prefix)")

	load := func() (config.Config, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newInitDBCmd(load))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
