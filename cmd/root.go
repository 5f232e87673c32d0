// Package cmd defines the CLI commands for the crawld executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seedline/crawld/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawld",
		Short: "A polite, concurrent web crawl scheduler.",
		Long: `crawld orchestrates batches of URL fetches as jobs: a bounded priority
frontier with duplicate suppression, per-domain rate limiting with robots
enforcement, classified retries, and a job lifecycle that can be paused,
resumed, and cancelled.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus CRAWLD_* env)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
