package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobradar/internal/cache"
	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/notifier"
	"github.com/amishk599/jobradar/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobradar",
	Short: "Evaluate job listings on the page you are browsing",
	Long: "jobradar reads listings from a job search page, asks an LLM whether each one fits " +
		"your criteria, and annotates the page with the verdict.",
	// Default to `start` so that `jobradar` with no args runs one session.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvConfigPath+" env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.ResolvePath(path))
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// quietLogger is used while a TUI owns the terminal.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, cfg.Channel.Namespace)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "driver", cfg.Store.Driver)
	return st, nil
}

// openCache opens the store and the analysis cache on top of it. The
// returned store must be closed by the caller.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.Store, *cache.Cache, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, cache.New(st, logger), nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
