// Package orchestrator drives processing sessions: it walks the listings of
// a page in order, short-circuits through the analysis cache, dispatches the
// rest to the analyzer one at a time and follows pagination while budget
// remains.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobradar/internal/dom"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/ratelimit"
	"github.com/amishk599/jobradar/internal/retry"
	"github.com/amishk599/jobradar/internal/store"
)

// ErrAlreadyRunning is returned by Begin while a session is active.
var ErrAlreadyRunning = errors.New("processing already running")

// Site is the page-side capability set a session needs from an adapter.
type Site interface {
	FindListings(ctx context.Context) ([]dom.Node, error)
	// ListingID is a cheap structural id read, "" when extraction is needed.
	ListingID(item dom.Node) string
	Extract(ctx context.Context, item dom.Node) (model.Listing, error)
	FindNextPage(ctx context.Context) (dom.Node, bool, error)
	AdvancePage(ctx context.Context, control dom.Node) error
	Render(ctx context.Context, item dom.Node, entry model.CacheEntry) error
}

// Dispatcher reaches the analyzer context.
type Dispatcher interface {
	// Status is the preflight check; a configuration error aborts the session.
	Status(ctx context.Context) error
	Analyze(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error)
}

// ResultCache is the subset of the analysis cache a session uses.
type ResultCache interface {
	Get(ctx context.Context, id string) (model.CacheEntry, bool)
	Put(ctx context.Context, id string, entry model.CacheEntry)
}

// Deps are the collaborators of an Orchestrator. Filter, Notifier and
// Settings are optional.
type Deps struct {
	Site       Site
	Dispatcher Dispatcher
	Cache      ResultCache
	Filter     model.ListingFilter
	Notifier   model.Notifier
	Settings   model.Store // budget override from the settings record
}

// Options tunes session behaviour.
type Options struct {
	Budget           int
	ItemDelay        time.Duration
	FailureThreshold int
	FailureCooldown  time.Duration
	DispatchRetries  int
	RetryBackoff     time.Duration
	MaxPages         int
}

// DefaultOptions returns the stock values.
func DefaultOptions() Options {
	return Options{
		Budget:           25,
		ItemDelay:        1500 * time.Millisecond,
		FailureThreshold: 3,
		FailureCooldown:  5 * time.Second,
		DispatchRetries:  2,
		RetryBackoff:     time.Second,
		MaxPages:         20,
	}
}

// Orchestrator owns the processing state machine. The processed id set
// outlives sessions and is only cleared by an explicit reset.
type Orchestrator struct {
	deps     Deps
	opts     Options
	pacer    *ratelimit.Pacer
	dispatch retry.Policy
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	current   *Session
	processed map[string]struct{}
}

// New creates an orchestrator.
func New(deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		pacer: ratelimit.NewPacer(opts.ItemDelay, opts.FailureCooldown, opts.FailureThreshold, logger),
		dispatch: retry.Policy{
			MaxAttempts: opts.DispatchRetries + 1,
			Backoff:     retry.Linear(opts.RetryBackoff),
			Retryable:   retry.Only(model.ErrTransportTimeout),
		},
		logger:    logger,
		state:     Idle,
		processed: make(map[string]struct{}),
	}
}

// State returns the orchestrator state; after a session it reflects how the
// last one ended.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns the running or most recent session, or nil.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Processed reports whether id has been taken by any session since the last
// reset.
func (o *Orchestrator) Processed(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.processed[id]
	return ok
}

// Process runs one session to the end. While another session is running it
// returns ErrAlreadyRunning and leaves that session untouched.
func (o *Orchestrator) Process(ctx context.Context, reset bool) (*Session, error) {
	s, err := o.Begin(ctx, reset)
	if err != nil {
		return nil, err
	}
	return s, o.Run(ctx, s)
}

// Begin moves Idle/Completed/Failed to Running and creates the session.
func (o *Orchestrator) Begin(ctx context.Context, reset bool) (*Session, error) {
	budget := o.budget(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Running {
		return nil, ErrAlreadyRunning
	}
	if reset {
		o.processed = make(map[string]struct{})
	}
	s := newSession(uuid.NewString(), budget)
	o.state = Running
	o.current = s
	return s, nil
}

// Run executes a session created by Begin. Only configuration errors and
// cancellation fail the session; per-listing problems are recorded on it.
func (o *Orchestrator) Run(ctx context.Context, s *Session) (err error) {
	o.logger.Info("session started", "session", s.ID, "budget", s.Budget)
	var matches []model.CacheEntry

	defer func() {
		s.finish(err)
		o.mu.Lock()
		o.state = s.State()
		o.mu.Unlock()

		o.notify(ctx, matches)
		counts := s.Counts()
		o.logger.Info("session finished",
			"session", s.ID,
			"state", s.State().String(),
			"consumed", s.Consumed(),
			"dispatched", s.Dispatched(),
			"cache_hits", counts[ItemCacheHit],
			"skipped", counts[ItemSkipped],
			"failed", counts[ItemFailed],
			"pages", s.Pages(),
			"duration", s.Duration().Round(time.Millisecond),
		)
	}()

	if err := o.deps.Dispatcher.Status(ctx); err != nil {
		if errors.Is(err, model.ErrServiceConfiguration) {
			return fmt.Errorf("preflight: %w", err)
		}
		o.logger.Warn("analyzer preflight failed, continuing", "error", err)
	}

	var prev []string
	for page := 1; ; page++ {
		s.page()
		ids, pageMatches, err := o.processPage(ctx, s)
		matches = append(matches, pageMatches...)
		if err != nil {
			return err
		}

		switch {
		case s.exhausted():
			o.logger.Debug("budget exhausted, not paginating", "session", s.ID, "consumed", s.Consumed())
			return nil
		case page > 1 && slices.Equal(ids, prev):
			// The next page control was clicked but the list did not change.
			o.logger.Warn("page did not change after pagination, stopping", "session", s.ID, "page", page)
			return nil
		case o.opts.MaxPages > 0 && page >= o.opts.MaxPages:
			o.logger.Info("page limit reached", "session", s.ID, "max_pages", o.opts.MaxPages)
			return nil
		}
		prev = ids

		control, ok, err := o.deps.Site.FindNextPage(ctx)
		if err != nil {
			o.logger.Warn("next page lookup failed", "session", s.ID, "error", err)
			return nil
		}
		if !ok {
			return nil
		}
		if err := o.deps.Site.AdvancePage(ctx, control); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("pagination failed", "session", s.ID, "page", page, "error", err)
			return nil
		}
	}
}

// processPage walks the current page in order. It returns the listing ids
// seen on the page and the new Fit results.
func (o *Orchestrator) processPage(ctx context.Context, s *Session) ([]string, []model.CacheEntry, error) {
	items, err := o.deps.Site.FindListings(ctx)
	if err != nil {
		o.logger.Warn("listing lookup failed", "session", s.ID, "error", err)
		return nil, nil, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = o.deps.Site.ListingID(item)
		if ids[i] != "" && !o.Processed(ids[i]) {
			s.track(ids[i])
		}
	}

	var matches []model.CacheEntry
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return ids, matches, err
		}
		if s.exhausted() {
			break
		}
		id := ids[i]
		if id != "" && o.Processed(id) {
			continue
		}

		entry, err := o.processItem(ctx, s, item, id)
		if err != nil {
			return ids, matches, err
		}
		if entry != nil {
			matches = append(matches, *entry)
		}
	}
	return ids, matches, nil
}

// processItem handles one listing. entry is set for a newly dispatched Fit
// result. The error is non-nil only
// when the session must stop.
func (o *Orchestrator) processItem(ctx context.Context, s *Session, item dom.Node, id string) (entry *model.CacheEntry, err error) {
	if id != "" {
		if !o.take(s, id) {
			return nil, nil
		}
		s.set(id, ItemExtracting)
	}

	listing, xerr := o.deps.Site.Extract(ctx, item)
	if listing.ID != "" && id == "" {
		id = listing.ID
		if !o.take(s, id) {
			return nil, nil
		}
	}
	if xerr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if id != "" {
			s.set(id, ItemSkipped)
		}
		o.logger.Warn("listing skipped", "session", s.ID, "id", id, "path", item.Path(), "error", xerr)
		return nil, nil
	}

	if o.deps.Filter != nil && !o.deps.Filter.Match(listing) {
		s.set(id, ItemFiltered)
		o.logger.Debug("listing filtered", "id", id, "title", listing.Title)
		return nil, nil
	}

	if cached, ok := o.deps.Cache.Get(ctx, id); ok {
		s.set(id, ItemCacheHit)
		o.render(ctx, s, item, cached)
		return nil, nil
	}

	slot := o.pacer.Begin()
	s.set(id, ItemDispatched)
	result, derr := o.analyze(ctx, listing)
	if derr != nil {
		if errors.Is(derr, model.ErrServiceConfiguration) {
			s.set(id, ItemFailed)
			return nil, derr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.set(id, ItemFailed)
		o.logger.Warn("dispatch failed", "session", s.ID, "id", id, "title", listing.Title, "error", derr)
		if _, cerr := o.pacer.Failure(ctx); cerr != nil {
			return nil, ctx.Err()
		}
		if err := slot.Wait(ctx); err != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	o.pacer.Success()

	e := model.NewCacheEntry(listing, result)
	o.deps.Cache.Put(ctx, id, e)
	s.set(id, ItemCached)
	o.render(ctx, s, item, e)
	if e.Verdict == model.VerdictFit {
		entry = &e
	}

	if err := slot.Wait(ctx); err != nil {
		return entry, ctx.Err()
	}
	return entry, nil
}

// take marks id processed and consumes a unit of budget. It reports false
// when id was already processed or the budget is spent.
func (o *Orchestrator) take(s *Session, id string) bool {
	o.mu.Lock()
	if _, seen := o.processed[id]; seen {
		o.mu.Unlock()
		return false
	}
	if !s.consume() {
		o.mu.Unlock()
		return false
	}
	o.processed[id] = struct{}{}
	o.mu.Unlock()
	return true
}

func (o *Orchestrator) analyze(ctx context.Context, listing model.Listing) (model.AnalysisResult, error) {
	var result model.AnalysisResult
	err := o.dispatch.Do(ctx, o.logger, "dispatch "+listing.ID, func(ctx context.Context, attempt int) error {
		r, err := o.deps.Dispatcher.Analyze(ctx, model.RequestFor(listing))
		if err != nil {
			// Each timed-out attempt extends the failure streak. The final
			// failure is counted by the caller.
			if attempt < o.dispatch.MaxAttempts && errors.Is(err, model.ErrTransportTimeout) {
				if _, cerr := o.pacer.Failure(ctx); cerr != nil {
					return cerr
				}
			}
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (o *Orchestrator) render(ctx context.Context, s *Session, item dom.Node, entry model.CacheEntry) {
	entry.Verdict = entry.Verdict.Normalize()
	if err := o.deps.Site.Render(ctx, item, entry); err != nil {
		o.logger.Warn("render failed", "session", s.ID, "id", entry.ID, "error", err)
		return
	}
	s.set(entry.ID, ItemRendered)
}

func (o *Orchestrator) notify(ctx context.Context, matches []model.CacheEntry) {
	if o.deps.Notifier == nil || len(matches) == 0 {
		return
	}
	if err := o.deps.Notifier.Notify(ctx, matches); err != nil {
		o.logger.Error("notification failed", "matches", len(matches), "error", err)
	}
}

func (o *Orchestrator) budget(ctx context.Context) int {
	budget := o.opts.Budget
	if o.deps.Settings != nil {
		settings, ok, err := store.LoadSettings(ctx, o.deps.Settings)
		if err != nil {
			o.logger.Warn("settings load failed, using configured budget", "error", err)
		} else if ok && settings.Budget > 0 {
			budget = settings.Budget
		}
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}
