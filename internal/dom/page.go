package dom

import (
	"context"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// BadgeAttr marks annotation markup inserted by InsertBadge so a later
// render replaces it instead of stacking a second badge.
const BadgeAttr = "data-jobradar-badge"

// Page is a live element tree the scanner context can read and poke at.
// Implementations must be safe for use from one goroutine at a time plus the
// goroutine consuming Changes.
type Page interface {
	// ID identifies the page context; stable for the page's lifetime.
	ID() string
	// URL returns the current location (changes on in-page navigation).
	URL(ctx context.Context) (string, error)
	// Snapshot returns the root of a fresh snapshot of the tree.
	Snapshot(ctx context.Context) (Node, error)
	// Click activates the element addressed by target's path.
	Click(ctx context.Context, target Node) error
	// ScrollIntoView brings the element addressed by target's path into view.
	ScrollIntoView(ctx context.Context, target Node) error
	// InsertBadge appends markup inside target, replacing a previous badge.
	InsertBadge(ctx context.Context, target Node, markup string) error
	// Changes fires (coalesced) whenever the tree or URL may have changed.
	Changes() <-chan struct{}
}

// StaticPage is an in-memory Page. Mutations happen through SetHTML/SetURL,
// or through the OnClick hook, which lets callers script how the page reacts
// to activation.
type StaticPage struct {
	mu      sync.Mutex
	id      string
	url     string
	markup  string
	clicks  []string
	changes chan struct{}

	// OnClick, when set, runs after every Click with the clicked path.
	// It may call SetHTML/SetURL.
	OnClick func(p *StaticPage, path string)
}

var _ Page = (*StaticPage)(nil)

// NewStaticPage returns a page holding markup at url.
func NewStaticPage(id, url, markup string) *StaticPage {
	return &StaticPage{
		id:      id,
		url:     url,
		markup:  markup,
		changes: make(chan struct{}, 1),
	}
}

func (p *StaticPage) ID() string { return p.id }

func (p *StaticPage) URL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// SetURL changes the location without touching the tree.
func (p *StaticPage) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	p.notify()
}

// SetHTML replaces the whole document.
func (p *StaticPage) SetHTML(markup string) {
	p.mu.Lock()
	p.markup = markup
	p.mu.Unlock()
	p.notify()
}

// HTML returns the current document markup.
func (p *StaticPage) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markup
}

// Clicks returns the paths clicked so far, oldest first.
func (p *StaticPage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *StaticPage) Snapshot(_ context.Context) (Node, error) {
	return Parse(p.HTML())
}

func (p *StaticPage) Click(ctx context.Context, target Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := target.Path()
	p.mu.Lock()
	p.clicks = append(p.clicks, path)
	hook := p.OnClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, path)
	}
	return nil
}

func (p *StaticPage) ScrollIntoView(ctx context.Context, _ Node) error {
	return ctx.Err()
}

func (p *StaticPage) InsertBadge(_ context.Context, target Node, markup string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	root, err := Parse(p.markup)
	if err != nil {
		return err
	}
	el, ok := root.Lookup(target.Path())
	if !ok {
		return fmt.Errorf("insert badge: element %q not found", target.Path())
	}
	el.sel.Find("[" + BadgeAttr + "]").Remove()
	el.sel.AppendHtml(markup)

	doc, err := goquery.OuterHtml(root.sel)
	if err != nil {
		return fmt.Errorf("insert badge: render: %w", err)
	}
	p.markup = doc
	return nil
}

func (p *StaticPage) Changes() <-chan struct{} {
	return p.changes
}

func (p *StaticPage) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}
