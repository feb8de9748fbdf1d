package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/amishk599/jobradar/internal/adapter"
	"github.com/amishk599/jobradar/internal/ai"
	"github.com/amishk599/jobradar/internal/analyzer"
	"github.com/amishk599/jobradar/internal/browser"
	"github.com/amishk599/jobradar/internal/channel"
	"github.com/amishk599/jobradar/internal/config"
	"github.com/amishk599/jobradar/internal/dom"
	"github.com/amishk599/jobradar/internal/extract"
	"github.com/amishk599/jobradar/internal/filter"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/orchestrator"
)

// scanner is the wired scanner context: page, site adapter, dispatcher and
// orchestrator, sharing one cache and store.
type scanner struct {
	page    dom.Page
	site    adapter.SiteAdapter
	orch    *orchestrator.Orchestrator
	command *orchestrator.Command

	closers []func()
}

func (s *scanner) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildScanner wires everything a session needs. Sessions run under ctx.
func buildScanner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*scanner, error) {
	s := &scanner{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	st, c, err := openCache(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s.closers = append(s.closers, func() { st.Close() })

	dispatcher, err := buildDispatcher(ctx, s, cfg, st, logger)
	if err != nil {
		return nil, err
	}

	page, err := openPage(ctx, s, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.page = page

	registry := adapter.Default(adapter.Options{
		Extract: extract.Options{
			PollInterval:       cfg.Extraction.PollInterval,
			DescriptionTimeout: cfg.Extraction.DescriptionTimeout,
			MaxAttempts:        cfg.Extraction.MaxAttempts,
			Backoff:            cfg.Extraction.Backoff,
		},
		Settle: cfg.Processing.SettleDelay,
	}, logger)
	if cfg.Site.Layout != "" {
		s.site, err = registry.AttachAs(ctx, page, cfg.Site.Layout)
	} else {
		s.site, err = registry.Attach(ctx, page)
	}
	if err != nil {
		return nil, fmt.Errorf("attaching to %s: %w", cfg.Site.URL, err)
	}
	s.closers = append(s.closers, func() { registry.Detach(page.ID()) })
	logger.Info("site attached", "layout", s.site.Name(), "page", page.ID())

	deps := orchestrator.Deps{
		Site:       s.site,
		Dispatcher: dispatcher,
		Cache:      c,
		Notifier:   setupNotifier(cfg, newHTTPClient(0), logger),
		Settings:   st,
	}
	if f := buildFilter(cfg); f != nil {
		deps.Filter = f
	}

	opts := orchestrator.DefaultOptions()
	opts.Budget = cfg.Processing.Budget
	opts.ItemDelay = cfg.Processing.ItemDelay
	opts.FailureThreshold = cfg.Processing.FailureThreshold
	opts.FailureCooldown = cfg.Processing.FailureCooldown
	opts.DispatchRetries = cfg.Processing.DispatchRetries
	opts.MaxPages = cfg.Processing.MaxPages

	s.orch = orchestrator.New(deps, opts, logger)
	s.command = orchestrator.NewCommand(ctx, s.orch, cfg.Processing.ReplyWindow, logger)
	ok = true
	return s, nil
}

// buildDispatcher returns the scanner side of the channel. With the memory
// transport the analyzer context runs in-process; with redis it is the
// separate `jobradar analyzer` process.
func buildDispatcher(ctx context.Context, s *scanner, cfg *config.Config, st model.Store, logger *slog.Logger) (*analyzer.Client, error) {
	var transport channel.Transport
	switch cfg.Channel.Transport {
	case "redis":
		client, err := channel.NewRedisClient(ctx, cfg.Channel.RedisURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		t, err := channel.NewRedisTransport(ctx, client, cfg.Channel.Namespace, channel.ScannerContext, channel.AnalyzerContext, logger)
		if err != nil {
			return nil, err
		}
		transport = t
		logger.Info("using redis channel", "namespace", cfg.Channel.Namespace)
	default:
		scannerEnd, analyzerEnd := channel.NewMemoryBus(16)
		worker, err := buildWorker(analyzerEnd, cfg, st, logger)
		if err != nil {
			return nil, err
		}
		analyzerEnd.Respond(worker.Responder())
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("analyzer stopped", "error", err)
			}
		}()
		s.closers = append(s.closers, func() { analyzerEnd.Close() })
		transport = scannerEnd
	}
	s.closers = append(s.closers, func() { transport.Close() })

	ch := channel.New(transport, cfg.Channel.Timeout, logger)
	go ch.Run(ctx)
	return analyzer.NewClient(ch), nil
}

// buildWorker wires the analyzer context around t.
func buildWorker(t channel.Transport, cfg *config.Config, st model.Store, logger *slog.Logger) (*analyzer.Worker, error) {
	resume, err := config.LoadResume(cfg.Analysis.ResumePath)
	if err != nil {
		return nil, err
	}

	var service model.AnalysisService = ai.NewNopService()
	if cfg.Analysis.Enabled {
		provider := ai.NewOpenAIProvider(cfg.Analysis.BaseURL, cfg.Analysis.APIKey, cfg.Analysis.Model, newHTTPClient(cfg.Analysis.Timeout))
		service = ai.NewEvaluator(provider, ai.ListingFitTemplate, logger)
		logger.Info("analysis enabled", "model", cfg.Analysis.Model, "resume", resume != "")
	} else {
		logger.Info("analysis disabled, every listing will be unknown")
	}

	return analyzer.NewWorker(t, service, st, analyzer.Options{
		RequestsPerMinute: cfg.Analysis.RequestsPerMinute,
		RequestTimeout:    cfg.Analysis.Timeout,
		RequireCredential: cfg.Analysis.Enabled,
		Defaults: model.Settings{
			Credential: cfg.Analysis.APIKey,
			Criteria:   cfg.Analysis.Criteria,
			Resume:     resume,
			Budget:     cfg.Processing.Budget,
		},
	}, logger), nil
}

func buildFilter(cfg *config.Config) model.ListingFilter {
	f := filter.NewKeywordFilter(filter.Rules{
		TitleKeywords:        cfg.Filters.TitleKeywords,
		TitleExcludeKeywords: cfg.Filters.TitleExcludeKeywords,
		Locations:            cfg.Filters.Locations,
		ExcludeLocations:     cfg.Filters.ExcludeLocations,
	})
	if f.Empty() {
		return nil
	}
	return f
}

// openPage opens the configured site: a saved HTML file or a live tab.
func openPage(ctx context.Context, s *scanner, cfg *config.Config, logger *slog.Logger) (dom.Page, error) {
	if path, isFile := localPath(cfg.Site.URL); isFile {
		p, err := dom.OpenFile(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using saved page", "path", path)
		return p, nil
	}

	b, err := browser.Launch(ctx, browser.Options{
		Headless:     cfg.Browser.Headless,
		ExecPath:     cfg.Browser.ExecPath,
		PollInterval: cfg.Browser.PollInterval,
	}, logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, b.Close)

	p, err := b.Open(ctx, cfg.Site.URL)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, p.Close)
	return p, nil
}

// localPath reports whether raw names a file rather than a web page.
func localPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, true
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return "", false
	case "file":
		return u.Path, true
	default:
		return raw, true
	}
}
