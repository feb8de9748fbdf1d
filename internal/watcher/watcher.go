package watcher

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/amishk599/jobradar/internal/dom"
)

// Kind identifies which page region a signal is about.
type Kind int

const (
	NewListings Kind = iota
	DescriptionUpdated
	PaginationChanged
	numKinds
)

func (k Kind) String() string {
	switch k {
	case NewListings:
		return "new_listings"
	case DescriptionUpdated:
		return "description_updated"
	case PaginationChanged:
		return "pagination_changed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Signal is one debounced rescan request.
type Signal struct {
	Kind Kind
	URL  string
}

// Regions holds the ranked container selectors for each watched region.
type Regions struct {
	Listings    []string
	Description []string
	Pagination  []string
}

func (r Regions) selectors(k Kind) []string {
	switch k {
	case NewListings:
		return r.Listings
	case DescriptionUpdated:
		return r.Description
	default:
		return r.Pagination
	}
}

// Options tunes the watcher timing.
type Options struct {
	QuietPeriod      time.Duration   // wait after the last change in a region
	NavigationDelays []time.Duration // NewListings re-emits after a URL change
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		QuietPeriod:      1500 * time.Millisecond,
		NavigationDelays: []time.Duration{time.Second, 3 * time.Second},
	}
}

// Watcher turns raw page change notifications into debounced per-region
// signals.
type Watcher struct {
	page    dom.Page
	regions Regions
	opts    Options
	logger  *slog.Logger

	signals chan Signal
	fire    chan fired

	prints [numKinds]string
	gen    [numKinds]int
	url    string
}

type fired struct {
	kind Kind
	gen  int // -1 for navigation re-emits, which are never superseded
}

// New creates a watcher for page. Call Start to begin observing.
func New(page dom.Page, regions Regions, opts Options, logger *slog.Logger) *Watcher {
	return &Watcher{
		page:    page,
		regions: regions,
		opts:    opts,
		logger:  logger,
		signals: make(chan Signal, 16),
		fire:    make(chan fired, 16),
	}
}

// Signals returns the channel of debounced signals. It is closed when the
// watcher stops.
func (w *Watcher) Signals() <-chan Signal {
	return w.signals
}

// Start records the current state of every region as the baseline and
// observes the page until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.url, _ = w.page.URL(ctx)
	if root, err := w.page.Snapshot(ctx); err == nil {
		for k := Kind(0); k < numKinds; k++ {
			w.prints[k] = w.fingerprint(root, k)
		}
	} else {
		w.logger.Debug("watcher baseline snapshot failed", "error", err)
	}
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.signals)

	changes := w.page.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			w.observe(ctx)
		case f := <-w.fire:
			if f.gen >= 0 && f.gen != w.gen[f.kind] {
				continue
			}
			w.emit(ctx, f.kind)
		}
	}
}

func (w *Watcher) observe(ctx context.Context) {
	if url, err := w.page.URL(ctx); err == nil && url != w.url {
		w.logger.Debug("navigation detected", "from", w.url, "to", url)
		w.url = url
		for _, d := range w.opts.NavigationDelays {
			w.after(ctx, d, fired{kind: NewListings, gen: -1})
		}
	}

	root, err := w.page.Snapshot(ctx)
	if err != nil {
		w.logger.Debug("watcher snapshot failed", "error", err)
		return
	}
	for k := Kind(0); k < numKinds; k++ {
		fp := w.fingerprint(root, k)
		if fp == w.prints[k] {
			continue
		}
		w.prints[k] = fp
		if fp == "" {
			continue // region went away
		}
		w.gen[k]++
		w.after(ctx, w.opts.QuietPeriod, fired{kind: k, gen: w.gen[k]})
	}
}

// fingerprint summarises a region as element count plus a content hash,
// ignoring our own badges. Empty when the region is absent.
func (w *Watcher) fingerprint(root dom.Node, k Kind) string {
	container, ok := root.First(w.regions.selectors(k)...)
	if !ok {
		return ""
	}
	clean := container.Without("[" + dom.BadgeAttr + "]")
	h := fnv.New64a()
	h.Write([]byte(clean.HTML()))
	return fmt.Sprintf("%d:%x", clean.Count(), h.Sum64())
}

func (w *Watcher) after(ctx context.Context, d time.Duration, f fired) {
	time.AfterFunc(d, func() {
		select {
		case w.fire <- f:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) emit(ctx context.Context, k Kind) {
	url, _ := w.page.URL(ctx)
	select {
	case w.signals <- Signal{Kind: k, URL: url}:
		w.logger.Debug("page signal", "kind", k.String(), "url", url)
	default:
		w.logger.Debug("page signal dropped, consumer busy", "kind", k.String())
	}
}
