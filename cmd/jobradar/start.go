package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/orchestrator"
)

var resetProcessed bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run one processing session",
	Long:  "Open the configured page, evaluate up to the budget of unseen listings, annotate them and exit.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&resetProcessed, "reset", false, "forget which listings were already processed")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"site", cfg.Site.URL,
		"budget", cfg.Processing.Budget,
		"transport", cfg.Channel.Transport,
		"store", cfg.Store.Driver,
		"analysis", cfg.Analysis.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := buildScanner(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	res := sc.command.StartProcessing(ctx, resetProcessed)
	logSession(logger, sc.orch.Current())
	if !res.Success {
		logger.Error("session failed", "session", res.SessionID, "error", res.Error)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

func logSession(logger *slog.Logger, s *orchestrator.Session) {
	if s == nil {
		return
	}
	attrs := []any{
		"session", s.ID,
		"state", s.State().String(),
		"consumed", s.Consumed(),
		"dispatched", s.Dispatched(),
		"pages", s.Pages(),
		"duration", s.Duration().String(),
	}
	for st, n := range s.Counts() {
		attrs = append(attrs, st.String(), n)
	}
	logger.Info("session summary", attrs...)
}
