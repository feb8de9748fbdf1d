// Package scheduler decides when processing sessions start in watch mode:
// once at startup, on page change signals, and on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobradar/internal/orchestrator"
	"github.com/amishk599/jobradar/internal/watcher"
)

// Starter starts a processing session and reports how it went.
type Starter interface {
	StartProcessing(ctx context.Context, resetProcessed bool) orchestrator.Result
}

// Scheduler owns the watch loop.
type Scheduler struct {
	starter Starter
	signals <-chan watcher.Signal
	spec    string // cron spec, e.g. "@every 30m"; empty disables
	logger  *slog.Logger
}

// New creates a scheduler. signals may be nil when no watcher runs.
func New(starter Starter, signals <-chan watcher.Signal, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		starter: starter,
		signals: signals,
		spec:    spec,
		logger:  logger,
	}
}

// Run triggers one immediate session, then one per NewListings or
// PaginationChanged signal and per cron tick. It returns nil when ctx is
// cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	if s.spec != "" {
		c := cron.New(cron.WithLogger(cronLogger{s.logger}))
		if _, err := c.AddFunc(s.spec, func() { s.trigger(ctx, "schedule") }); err != nil {
			return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	s.logger.Info("starting scheduler", "schedule", s.spec, "watching", s.signals != nil)
	s.trigger(ctx, "startup")

	signals := s.signals
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if sig.Kind == watcher.DescriptionUpdated {
				// The detail panel changes whenever a listing is activated;
				// that alone never brings new listings.
				s.logger.Debug("ignoring signal", "kind", sig.Kind, "url", sig.URL)
				continue
			}
			s.trigger(ctx, sig.Kind.String())
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	res := s.starter.StartProcessing(ctx, false)
	switch {
	case res.Ignored:
		s.logger.Debug("session already running", "reason", reason, "session", res.SessionID)
	case !res.Success:
		s.logger.Error("session failed", "reason", reason, "session", res.SessionID, "error", res.Error)
	default:
		s.logger.Info("session finished", "reason", reason, "session", res.SessionID, "provisional", res.Provisional)
	}
}

// cronLogger routes robfig/cron's logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
