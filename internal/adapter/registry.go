package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync"

	"github.com/amishk599/jobradar/internal/dom"
)

// Factory builds the adapter for one page.
type Factory func(page dom.Page, opts Options, logger *slog.Logger) SiteAdapter

type registration struct {
	name    string
	origin  *regexp.Regexp
	factory Factory
}

// Registry maps page origins to layout factories and page ids to live
// adapter instances.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	layouts   []registration
	instances map[string]SiteAdapter
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	return &Registry{
		opts:      opts,
		logger:    logger,
		instances: make(map[string]SiteAdapter),
	}
}

// Default returns a registry with every built-in layout registered.
func Default(opts Options, logger *slog.Logger) *Registry {
	r := NewRegistry(opts, logger)
	r.MustRegister("linkedin", LinkedInOrigin, NewLinkedIn)
	return r
}

// Register adds a layout. originPattern is matched against the page origin
// ("scheme://host"). Layouts are tried in registration order.
func (r *Registry) Register(name, originPattern string, f Factory) error {
	re, err := regexp.Compile(originPattern)
	if err != nil {
		return fmt.Errorf("register layout %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.layouts {
		if l.name == name {
			return fmt.Errorf("register layout %s: already registered", name)
		}
	}
	r.layouts = append(r.layouts, registration{name: name, origin: re, factory: f})
	return nil
}

// MustRegister is Register for static registrations.
func (r *Registry) MustRegister(name, originPattern string, f Factory) {
	if err := r.Register(name, originPattern, f); err != nil {
		panic(err)
	}
}

// Layouts lists registered layout names.
func (r *Registry) Layouts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.layouts))
	for _, l := range r.layouts {
		names = append(names, l.name)
	}
	return names
}

// Attach returns the adapter for page, creating it on first use. Repeated
// calls for the same page id return the same instance.
func (r *Registry) Attach(ctx context.Context, page dom.Page) (SiteAdapter, error) {
	if a, ok := r.Lookup(page.ID()); ok {
		return a, nil
	}

	raw, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", page.ID(), err)
	}
	origin := originOf(raw)

	r.mu.Lock()
	var reg *registration
	for i := range r.layouts {
		if r.layouts[i].origin.MatchString(origin) {
			reg = &r.layouts[i]
			break
		}
	}
	r.mu.Unlock()
	if reg == nil {
		return nil, fmt.Errorf("attach %s (%s): %w", page.ID(), origin, ErrUnsupportedSite)
	}
	return r.attach(ctx, page, *reg)
}

// AttachAs attaches a named layout regardless of origin, for pages whose
// URL says nothing about the layout (local files).
func (r *Registry) AttachAs(ctx context.Context, page dom.Page, name string) (SiteAdapter, error) {
	if a, ok := r.Lookup(page.ID()); ok {
		return a, nil
	}
	r.mu.Lock()
	var reg *registration
	for i := range r.layouts {
		if r.layouts[i].name == name {
			reg = &r.layouts[i]
			break
		}
	}
	r.mu.Unlock()
	if reg == nil {
		return nil, fmt.Errorf("attach %s as %q: %w", page.ID(), name, ErrUnsupportedSite)
	}
	return r.attach(ctx, page, *reg)
}

func (r *Registry) attach(ctx context.Context, page dom.Page, reg registration) (SiteAdapter, error) {
	a := reg.factory(page, r.opts, r.logger.With("layout", reg.name, "page", page.ID()))
	ok, err := a.DetectSite(ctx)
	if err != nil {
		return nil, fmt.Errorf("attach %s: detect %s: %w", page.ID(), reg.name, err)
	}
	if !ok {
		return nil, fmt.Errorf("attach %s: page does not show the %s layout: %w", page.ID(), reg.name, ErrUnsupportedSite)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have won the race while we were detecting.
	if existing, ok := r.instances[page.ID()]; ok {
		return existing, nil
	}
	r.instances[page.ID()] = a
	r.logger.Info("adapter attached", "layout", reg.name, "page", page.ID())
	return a, nil
}

// Lookup returns the adapter attached to a page id.
func (r *Registry) Lookup(pageID string) (SiteAdapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.instances[pageID]
	return a, ok
}

// Detach forgets the adapter of a closed page.
func (r *Registry) Detach(pageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, pageID)
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
