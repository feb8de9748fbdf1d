package pagination

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobradar/internal/dom"
)

// Strategy locates a next-page control: Selector is searched inside the
// first element matching Container (the whole document when empty).
type Strategy struct {
	Container string
	Selector  string
}

// Crawler finds and drives a layout's next-page control.
type Crawler struct {
	page       dom.Page
	strategies []Strategy
	settle     time.Duration
	logger     *slog.Logger
}

// New creates a crawler trying strategies in rank order. settle is how long
// Advance waits for the next page to render.
func New(page dom.Page, strategies []Strategy, settle time.Duration, logger *slog.Logger) *Crawler {
	return &Crawler{
		page:       page,
		strategies: strategies,
		settle:     settle,
		logger:     logger,
	}
}

// FindNext returns the first usable next-page control. ok is false when no
// strategy yields a control that is present, enabled and visible; that ends
// pagination and is not an error.
func (c *Crawler) FindNext(ctx context.Context) (dom.Node, bool, error) {
	root, err := c.page.Snapshot(ctx)
	if err != nil {
		return dom.Node{}, false, fmt.Errorf("find next page: %w", err)
	}
	return FindNext(root, c.strategies)
}

// FindNext applies strategies to a snapshot.
func FindNext(root dom.Node, strategies []Strategy) (dom.Node, bool, error) {
	for _, s := range strategies {
		scope := root
		if s.Container != "" {
			container, ok := root.First(s.Container)
			if !ok {
				continue
			}
			scope = container
		}
		for _, control := range scope.Find(s.Selector) {
			if usable(control) {
				return control, true, nil
			}
		}
	}
	return dom.Node{}, false, nil
}

func usable(n dom.Node) bool {
	return n.Exists() && !n.Disabled() && !n.Hidden()
}

// Advance scrolls control into view, clicks it and waits for the page to
// settle.
func (c *Crawler) Advance(ctx context.Context, control dom.Node) error {
	if err := c.page.ScrollIntoView(ctx, control); err != nil {
		c.logger.Debug("scroll to next page control failed", "error", err)
	}
	if err := c.page.Click(ctx, control); err != nil {
		return fmt.Errorf("advance page: %w", err)
	}
	c.logger.Debug("advanced to next page", "control", control.Path(), "settle", c.settle)

	select {
	case <-ctx.Done():
		return fmt.Errorf("advance page: %w", ctx.Err())
	case <-time.After(c.settle):
		return nil
	}
}
