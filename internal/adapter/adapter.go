// Package adapter binds page layouts to the extraction pipeline. Each layout
// has one SiteAdapter implementation; a Registry picks the implementation for
// a page by origin and keeps one instance per page.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/amishk599/jobradar/internal/dom"
	"github.com/amishk599/jobradar/internal/extract"
	"github.com/amishk599/jobradar/internal/orchestrator"
	"github.com/amishk599/jobradar/internal/watcher"
)

// ErrUnsupportedSite is returned by Attach when no registered layout fits
// the page.
var ErrUnsupportedSite = errors.New("unsupported site")

// SiteAdapter is everything the orchestrator and watcher need from one page
// layout.
type SiteAdapter interface {
	orchestrator.Site

	// Name is the layout name used in logs and --layout.
	Name() string
	// DetectSite reports whether the page currently shows this layout.
	DetectSite(ctx context.Context) (bool, error)
	// Regions are the containers the change watcher observes.
	Regions() watcher.Regions
}

// Options are the timings shared by every adapter.
type Options struct {
	Extract extract.Options
	Settle  time.Duration // wait after advancing a page
}

// DefaultOptions returns the stock adapter timings.
func DefaultOptions() Options {
	return Options{
		Extract: extract.DefaultOptions(),
		Settle:  2 * time.Second,
	}
}

// compile-time check
var _ SiteAdapter = (*LinkedIn)(nil)

// Listing elements tend to carry nested matches for the same card, so a
// layout lists its item selectors in rank order and the first one that
// matches anything wins.
func findItems(root dom.Node, containers, items []string) []dom.Node {
	scope := root
	if c, ok := root.First(containers...); ok {
		scope = c
	}
	for _, sel := range items {
		if found := scope.Find(sel); len(found) > 0 {
			return found
		}
	}
	return nil
}
