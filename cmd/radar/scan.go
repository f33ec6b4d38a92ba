package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenscope/internal/config"
)

func runScan(cmd *cobra.Command, _ []string) error {
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

	eng.RunCycle(ctx)

	status := eng.Status()
	if status.Degraded {
		return fmt.Errorf("scan failed: %s", status.LastError)
	}

	ranked := eng.GetRanked(cfg.RankLimit)
	for i, scored := range ranked {
		fmt.Printf("%3d  %-10s  %-30s  %12.2f\n", i+1, scored.Symbol, scored.Name, scored.Score)
	}

	logger.Info("scan complete",
		zap.Int("entities", status.Entities),
		zap.Int("ranked", len(ranked)),
	)
	return nil
}
