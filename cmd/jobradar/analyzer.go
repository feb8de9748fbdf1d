package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/channel"
)

var analyzerCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Run the analyzer context as its own process",
	Long:  "Serve analyze and status requests from scanners over Redis (channel.transport: redis); blocks until SIGINT/SIGTERM.",
	RunE:  runAnalyzer,
}

func init() {
	rootCmd.AddCommand(analyzerCmd)
}

func runAnalyzer(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Channel.Transport != "redis" {
		logger.Error("the analyzer command requires channel.transport to be \"redis\"")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client, err := channel.NewRedisClient(ctx, cfg.Channel.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	t, err := channel.NewRedisTransport(ctx, client, cfg.Channel.Namespace, channel.AnalyzerContext, channel.ScannerContext, logger)
	if err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	defer t.Close()

	worker, err := buildWorker(t, cfg, st, logger)
	if err != nil {
		logger.Error("failed to build analyzer", "error", err)
		os.Exit(1)
	}

	logger.Info("analyzer ready", "namespace", cfg.Channel.Namespace)
	if err := worker.Run(ctx); err != nil {
		logger.Error("analyzer error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
