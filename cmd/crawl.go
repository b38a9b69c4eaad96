package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/polite-crawler/internal/clock/system"
	"github.com/JakeFAU/polite-crawler/internal/config"
	"github.com/JakeFAU/polite-crawler/internal/crawler"
	"github.com/JakeFAU/polite-crawler/internal/dataprovider"
	collyfetcher "github.com/JakeFAU/polite-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/polite-crawler/internal/hash/sha256"
	"github.com/JakeFAU/polite-crawler/internal/id/uuid"
	"github.com/JakeFAU/polite-crawler/internal/logging"
	"github.com/JakeFAU/polite-crawler/internal/metrics"
)

// Factories are variables so tests can substitute collaborators.
var (
	newLogger   = logging.New
	newProvider = dataprovider.New
	newFetcher  = func(cfg collyfetcher.Config, logger *zap.Logger) crawler.Fetcher {
		return collyfetcher.New(cfg, logger)
	}
	newIDGenerator = func() crawler.IDGenerator { return uuid.New() }
)

func runCrawl(parent context.Context, cfgFile string, cmd *cobra.Command) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	runID, err := newIDGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	provider, err := newProvider(cfg.Data.Provider, dataprovider.Options{
		Dir:    cfg.Data.Dir,
		RunID:  runID,
		Hasher: sha256.New(),
		Clock:  system.New(),
		Logger: logger.Named("data"),
	})
	if err != nil {
		return err
	}

	fetcher := newFetcher(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
		MaxAttempts: cfg.HTTP.MaxRetries + 1,
	}, logger.Named("fetcher"))

	engine := crawler.New(cfg.CrawlerSettings(), provider, fetcher, logger.Named("crawler"))
	if err := engine.Init(ctx); err != nil {
		return err
	}

	engine.Start(ctx, cfg.Crawler.Seed)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("Failed to write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	return nil
}
