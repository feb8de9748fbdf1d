package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/scheduler"
	"github.com/amishk599/jobradar/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the page open and process new listings as they appear",
	Long:  "Run a session at startup, whenever the listing list or pagination changes, and on watch.schedule; blocks until SIGINT/SIGTERM.",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := buildScanner(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	wopts := watcher.DefaultOptions()
	wopts.QuietPeriod = cfg.Watch.QuietPeriod
	w := watcher.New(sc.page, sc.site.Regions(), wopts, logger)
	w.Start(ctx)

	sched := scheduler.New(sc.command, w.Signals(), cfg.Watch.Schedule, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
