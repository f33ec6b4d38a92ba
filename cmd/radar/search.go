package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokenscope/internal/config"
)

func runSearch(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("search failed: %s", status.LastError)
	}

	results := eng.Search(args[0], cfg.SearchLimit)
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, scored := range results {
		fmt.Printf("%4d  %-10s  %-30s  %s\n", scored.MatchScore, scored.Symbol, scored.Name, scored.Address)
	}
	return nil
}
