package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenscope/internal/config"
	"tokenscope/internal/engine"
	"tokenscope/internal/enrich"
	"tokenscope/internal/feed"
	"tokenscope/internal/rank"
	"tokenscope/internal/storage"
	"tokenscope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "radar",
		Short:        "Token discovery and ranking engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the polling pipeline",
		RunE:  runEngine,
	}
	addEngineFlags(runCmd)
	root.AddCommand(runCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "One-shot aggregation and ranking",
		RunE:  runScan,
	}
	addEngineFlags(scanCmd)
	root.AddCommand(scanCmd)

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "One-shot query against the aggregated entity set",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	addEngineFlags(searchCmd)
	root.AddCommand(searchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("feed-base-url", "", "upstream explore API base URL")
	cmd.Flags().String("oracle-base-url", "", "price oracle base URL")
	cmd.Flags().StringSlice("feeds", nil, "feed list names (comma-separated)")
	cmd.Flags().Int("count-per-source", 20, "entities fetched per feed")
	cmd.Flags().Int("rank-limit", 50, "ranked entities kept per cycle")
	cmd.Flags().Int("search-limit", 15, "maximum search results")
	cmd.Flags().Float64("cap-delta-weight", 1.5, "market cap delta weight")
	cmd.Flags().Float64("volume-weight", 0.001, "24h volume weight")
	cmd.Flags().Float64("holders-weight", 2.0, "unique holders weight")
	cmd.Flags().Duration("cache-ttl", 30*time.Second, "price cache freshness window")
	cmd.Flags().Duration("cache-retention", 5*time.Minute, "stale entry retention")
	cmd.Flags().Int("rate-limit-max", 60, "max oracle requests per window")
	cmd.Flags().Duration("rate-limit-window", time.Minute, "oracle rate limit window")
	cmd.Flags().Int("batch-size", 3, "price fetch batch size")
	cmd.Flags().Duration("poll-interval", 10*time.Second, "pipeline poll interval")
	cmd.Flags().Duration("fetch-timeout", 10*time.Second, "outbound request timeout")
	cmd.Flags().Int("max-retries", 3, "maximum feed retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("out", "", "ranked snapshot JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot persistence")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("engine start",
		zap.String("feed_base_url", cfg.FeedBaseURL),
		zap.Strings("feeds", cfg.Feeds),
		zap.Int("count_per_source", cfg.CountPerSource),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	go logDeltas(ctx, eng, logger)

	err = eng.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logDeltas(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case delta := <-eng.Updates():
			logger.Info("ranking delta",
				zap.Int("changed", len(delta.Changed)),
				zap.Bool("full", delta.Full),
			)
		case prices := <-eng.PriceUpdates():
			logger.Info("price update", zap.Int("changed", len(prices)))
		}
	}
}

// buildEngine wires feed sources, the enrichment cache, and snapshot sinks.
// The returned cleanup closes any opened stores.
func buildEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*engine.Engine, func(), error) {
	if cfg.FeedBaseURL == "" {
		return nil, nil, fmt.Errorf("feed base url is required")
	}
	if len(cfg.Feeds) == 0 {
		return nil, nil, fmt.Errorf("at least one feed is required")
	}

	client := feed.NewClient(feed.ClientConfig{
		BaseURL:      cfg.FeedBaseURL,
		Timeout:      cfg.FetchTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	sources := make([]feed.Source, 0, len(cfg.Feeds))
	for _, name := range cfg.Feeds {
		sources = append(sources, client.List(name))
	}

	var cache *enrich.Cache
	if cfg.OracleBaseURL != "" {
		oracle := enrich.NewHTTPOracle(enrich.OracleConfig{
			BaseURL:         cfg.OracleBaseURL,
			Timeout:         cfg.FetchTimeout,
			RateLimitMax:    cfg.RateLimitMax,
			RateLimitWindow: cfg.RateLimitWindow,
		}, logger)
		cache = enrich.NewCache(enrich.CacheConfig{
			TTL:             cfg.CacheTTL,
			Retention:       cfg.CacheRetention,
			BatchSize:       cfg.BatchSize,
			RefreshInterval: cfg.PollInterval,
		}, oracle, logger)
	}

	var sinks []storage.Sink
	cleanup := func() {}
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlSink(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sinks = append(sinks, store)
		cleanup = store.Close
	}

	eng := engine.New(engine.Config{
		Weights: rank.Weights{
			CapDelta: cfg.CapDeltaWeight,
			Volume:   cfg.VolumeWeight,
			Holders:  cfg.HoldersWeight,
		},
		CountPerSource: cfg.CountPerSource,
		RankLimit:      cfg.RankLimit,
		PollInterval:   cfg.PollInterval,
	}, sources, cache, sinks, logger)

	return eng, cleanup, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
