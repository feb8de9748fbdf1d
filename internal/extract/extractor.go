package extract

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/jobradar/internal/dom"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/retry"
)

// Options tunes description polling and the retry-until-stable loop.
type Options struct {
	PollInterval       time.Duration
	DescriptionTimeout time.Duration
	MaxAttempts        int
	Backoff            time.Duration // linear: backoff, 2*backoff, ...
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		PollInterval:       250 * time.Millisecond,
		DescriptionTimeout: 5 * time.Second,
		MaxAttempts:        3,
		Backoff:            500 * time.Millisecond,
	}
}

// Extractor turns listing elements of one layout into model.Listing values.
type Extractor struct {
	page   dom.Page
	layout Layout
	opts   Options
	policy retry.Policy
	logger *slog.Logger
}

// New creates an extractor reading listings of layout from page.
func New(page dom.Page, layout Layout, opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		page:   page,
		layout: layout,
		opts:   opts,
		policy: retry.Policy{
			MaxAttempts: opts.MaxAttempts,
			Backoff:     retry.Linear(opts.Backoff),
			Retryable:   retry.Only(model.ErrExtractionIncomplete),
		},
		logger: logger,
	}
}

// Extract reads one listing. Every attempt scrolls the listing into view,
// activates it and waits for its description. When title or company is still
// missing after the last attempt the partial listing is returned with an
// error wrapping model.ErrExtractionIncomplete. A description that never
// shows up only leaves Description empty.
func (e *Extractor) Extract(ctx context.Context, item dom.Node) (model.Listing, error) {
	path := item.Path()
	var listing model.Listing

	err := e.policy.Do(ctx, e.logger, "extract", func(ctx context.Context, attempt int) error {
		l, err := e.attempt(ctx, item, path)
		listing = l
		if err != nil {
			return err
		}
		if isPlaceholder(l.Title, e.layout.Placeholders) || isPlaceholder(l.Company, e.layout.Placeholders) {
			e.logger.Debug("listing fields not ready",
				"path", path,
				"attempt", attempt,
				"title", l.Title,
				"company", l.Company,
			)
			return fmt.Errorf("extract %s: title/company missing: %w", path, model.ErrExtractionIncomplete)
		}
		return nil
	})
	if err != nil {
		return listing, err
	}
	return listing, nil
}

func (e *Extractor) attempt(ctx context.Context, item dom.Node, path string) (model.Listing, error) {
	root, err := e.page.Snapshot(ctx)
	if err != nil {
		return model.Listing{}, fmt.Errorf("extract: snapshot: %w", err)
	}
	cur, ok := root.Lookup(path)
	if !ok {
		cur = item
	}

	if err := e.page.ScrollIntoView(ctx, cur); err != nil {
		e.logger.Debug("scroll into view failed", "path", path, "error", err)
	}

	before := e.panelText(root)
	if err := e.page.Click(ctx, e.activator(cur)); err != nil {
		e.logger.Debug("activate listing failed", "path", path, "error", err)
	}

	// Fields read before the panel settles may still be placeholders;
	// re-read from the freshest snapshot.
	listing := e.fields(cur)
	panel, fresh := e.awaitDescription(ctx, path, listing.ID, before)
	if fresh.Exists() {
		if again, ok := fresh.Lookup(path); ok {
			listing = merge(e.fields(again), listing)
		}
	}
	if panel.Exists() {
		listing.RichDescription = panel.HTML()
		listing.Description = PlainText(listing.RichDescription)
	}

	if listing.ID == "" && listing.Title != "" {
		listing.ID = fallbackID(listing)
	}
	pageURL, _ := e.page.URL(ctx)
	listing.SourceURL = resolve(pageURL, listing.SourceURL)
	return listing, nil
}

// ID reads the listing id with the layout's id strategies only, without
// touching the page. Empty when the layout exposes no structural id.
func (e *Extractor) ID(item dom.Node) string {
	return first(item, e.layout.ID)
}

func (e *Extractor) activator(item dom.Node) dom.Node {
	if n, ok := item.First(e.layout.Activate...); ok {
		return n
	}
	return item
}

func (e *Extractor) fields(item dom.Node) model.Listing {
	return model.Listing{
		ID:        first(item, e.layout.ID),
		Title:     CollapseRepeated(first(item, e.layout.Title)),
		Company:   CollapseRepeated(first(item, e.layout.Company)),
		Location:  first(item, e.layout.Location),
		Salary:    first(item, e.layout.Salary),
		SourceURL: first(item, e.layout.Link),
	}
}

func (e *Extractor) panelText(root dom.Node) string {
	panel, ok := root.First(e.layout.Panel...)
	if !ok {
		return ""
	}
	return panel.Text()
}

// awaitDescription polls until the panel shows this listing or the timeout
// passes. It returns the populated panel (zero Node on timeout) and the last
// snapshot taken.
func (e *Extractor) awaitDescription(ctx context.Context, path, id, before string) (dom.Node, dom.Node) {
	if len(e.layout.Panel) == 0 {
		return dom.Node{}, dom.Node{}
	}
	deadline := time.NewTimer(e.opts.DescriptionTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	var last dom.Node
	for {
		root, err := e.page.Snapshot(ctx)
		if err == nil {
			last = root
			if panel, ok := root.First(e.layout.Panel...); ok && e.populated(panel, id, before) {
				return panel, root
			}
		}

		select {
		case <-ctx.Done():
			return dom.Node{}, last
		case <-deadline.C:
			e.logger.Debug("description not loaded before timeout",
				"path", path,
				"timeout", e.opts.DescriptionTimeout,
			)
			return dom.Node{}, last
		case <-ticker.C:
		}
	}
}

func (e *Extractor) populated(panel dom.Node, id, before string) bool {
	text := panel.Text()
	if text == "" {
		return false
	}
	if e.layout.PanelID != nil && id != "" {
		if shown := e.layout.PanelID(panel); shown != "" {
			return shown == id
		}
	}
	return text != before
}

// merge fills empty fields of primary from fallback.
func merge(primary, fallback model.Listing) model.Listing {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	primary.ID = pick(primary.ID, fallback.ID)
	primary.Title = pick(primary.Title, fallback.Title)
	primary.Company = pick(primary.Company, fallback.Company)
	primary.Location = pick(primary.Location, fallback.Location)
	primary.Salary = pick(primary.Salary, fallback.Salary)
	primary.SourceURL = pick(primary.SourceURL, fallback.SourceURL)
	return primary
}

// fallbackID derives a stable id from normalized title, company and location
// for layouts that expose no structural id.
func fallbackID(l model.Listing) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	h := fnv.New64a()
	h.Write([]byte(norm(l.Title) + "|" + norm(l.Company) + "|" + norm(l.Location)))
	return fmt.Sprintf("h%016x", h.Sum64())
}

func resolve(base, ref string) string {
	if ref == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
