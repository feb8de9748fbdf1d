// Package analyzer is the privileged side of the channel: it owns the
// evaluation service credential and answers analyze and status requests.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobradar/internal/channel"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/store"
)

// Options configures a Worker.
type Options struct {
	RequestsPerMinute int           // 0 disables pacing
	RequestTimeout    time.Duration // per analyze request
	// RequireCredential fails requests when the settings carry no credential.
	RequireCredential bool
	// Defaults fill settings fields the persisted record leaves empty.
	Defaults model.Settings
}

// StatusReply is the payload of a successful status request.
type StatusReply struct {
	Ready    bool   `json:"ready"`
	Criteria bool   `json:"criteria"` // criteria configured
	Resume   bool   `json:"resume"`   // resume configured
	Budget   int    `json:"budget,omitempty"`
	Service  string `json:"service,omitempty"`
}

// Worker serves requests arriving on its transport endpoint.
type Worker struct {
	transport channel.Transport
	service   model.AnalysisService
	settings  model.Store
	limiter   *rate.Limiter
	opts      Options
	logger    *slog.Logger
}

// NewWorker creates a worker replying through t.
func NewWorker(t channel.Transport, service model.AnalysisService, settings model.Store, opts Options, logger *slog.Logger) *Worker {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Worker{
		transport: t,
		service:   service,
		settings:  settings,
		limiter:   limiter,
		opts:      opts,
		logger:    logger,
	}
}

// Responder answers status requests synchronously, before they are queued.
// Install it on the analyzer's memory endpoint.
func (w *Worker) Responder() channel.Responder {
	return func(ctx context.Context, msg channel.Message) (channel.Message, bool) {
		if msg.Type != channel.TypeStatus || msg.Reply {
			return channel.Message{}, false
		}
		reply, err := w.status(ctx, msg)
		if err != nil {
			w.logger.Error("building status reply", "error", err)
			return channel.Message{}, false
		}
		return reply, true
	}
}

// Run serves requests until ctx is done or the transport closes. Requests
// are handled one at a time in arrival order.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("analyzer worker started", "requests_per_minute", w.opts.RequestsPerMinute)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("analyzer worker stopped")
			return ctx.Err()
		case msg, ok := <-w.transport.Messages():
			if !ok {
				return nil
			}
			if msg.Reply {
				continue
			}
			w.serve(ctx, msg)
		}
	}
}

func (w *Worker) serve(ctx context.Context, msg channel.Message) {
	var (
		reply channel.Message
		err   error
	)
	switch msg.Type {
	case channel.TypeAnalyze:
		reply, err = w.analyze(ctx, msg)
	case channel.TypeStatus:
		reply, err = w.status(ctx, msg)
	default:
		reply, err = channel.NewReply(msg, nil, fmt.Errorf("unknown request type %q", msg.Type))
	}
	if err != nil {
		w.logger.Error("building reply", "type", msg.Type, "id", msg.ID, "error", err)
		return
	}
	if _, err := w.transport.Send(ctx, reply); err != nil {
		w.logger.Warn("sending reply failed", "type", msg.Type, "id", msg.ID, "error", err)
	}
}

func (w *Worker) analyze(ctx context.Context, msg channel.Message) (channel.Message, error) {
	var req model.AnalysisRequest
	if err := msg.Decode(&req); err != nil {
		return channel.NewReply(msg, nil, err)
	}

	settings, err := w.loadSettings(ctx)
	if err != nil {
		return channel.NewReply(msg, nil, err)
	}
	if err := w.checkCredential(settings); err != nil {
		return channel.NewReply(msg, nil, err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.opts.RequestTimeout)
	defer cancel()
	if err := w.limiter.Wait(ctx); err != nil {
		return channel.NewReply(msg, nil, fmt.Errorf("waiting for rate limiter: %w", err))
	}

	start := time.Now()
	verdict, markup, err := w.service.Evaluate(ctx, req, settings)
	if err != nil {
		w.logger.Warn("evaluation failed", "listing", req.ListingID, "error", err)
		return channel.NewReply(msg, nil, err)
	}
	result := model.AnalysisResult{
		ListingID:       req.ListingID,
		Verdict:         verdict.Normalize(),
		RationaleMarkup: markup,
		CompletedAt:     time.Now().UTC(),
	}
	w.logger.Info("listing evaluated",
		"listing", req.ListingID,
		"verdict", result.Verdict,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return channel.NewReply(msg, result, nil)
}

func (w *Worker) status(ctx context.Context, msg channel.Message) (channel.Message, error) {
	settings, err := w.loadSettings(ctx)
	if err != nil {
		return channel.NewReply(msg, nil, err)
	}
	if err := w.checkCredential(settings); err != nil {
		return channel.NewReply(msg, nil, err)
	}
	return channel.NewReply(msg, StatusReply{
		Ready:    true,
		Criteria: settings.Criteria != "",
		Resume:   settings.Resume != "",
		Budget:   settings.Budget,
		Service:  fmt.Sprintf("%T", w.service),
	}, nil)
}

func (w *Worker) checkCredential(s model.Settings) error {
	if w.opts.RequireCredential && s.Credential == "" {
		return fmt.Errorf("no api credential configured: %w", model.ErrServiceConfiguration)
	}
	return nil
}

// loadSettings reads the persisted record and fills gaps from defaults. A
// store failure is not fatal: the defaults are used.
func (w *Worker) loadSettings(ctx context.Context) (model.Settings, error) {
	s := w.opts.Defaults
	if w.settings == nil {
		return s, nil
	}
	rec, ok, err := store.LoadSettings(ctx, w.settings)
	if err != nil {
		w.logger.Warn("loading settings record", "error", fmt.Errorf("%w: %w", model.ErrPersistence, err))
		return s, nil
	}
	if !ok {
		return s, nil
	}
	if rec.Credential != "" {
		s.Credential = rec.Credential
	}
	if rec.Criteria != "" {
		s.Criteria = rec.Criteria
	}
	if rec.Resume != "" {
		s.Resume = rec.Resume
	}
	if rec.Budget > 0 {
		s.Budget = rec.Budget
	}
	return s, nil
}
