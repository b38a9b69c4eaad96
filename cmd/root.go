// Package cmd defines and implements the CLI for the crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/dataprovider"
	"github.com/JakeFAU/polite-crawler/internal/logging"
)

// newRootCmd creates and configures the root command. The crawl runs as the
// root command itself; flags override the config file and environment.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "A polite single-seed web crawler.",
		Long: `crawler fetches a seed page, follows its internal links to a bounded
depth and walks every sitemap its robots.txt declares. Each fetch honors the
site's robots.txt crawl-delay and every page and sitemap is recorded through
the selected data provider.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), cfgFile, cmd)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.Flags().String("url", "", "seed URL; without one no work is performed")
	cmd.Flags().String("data-provider", dataprovider.NameJSON, "data provider used to record pages and sitemaps")
	cmd.Flags().StringSlice("only-domain-extensions", nil, "comma-separated domain extensions to crawl (e.g. com,co.uk)")

	return cmd
}

// Execute is the main entry point. Any error is fatal.
func Execute() {
	// Bootstrap logger until the configured one replaces it.
	logger, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	if err := newRootCmd().Execute(); err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
