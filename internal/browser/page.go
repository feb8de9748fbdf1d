// Package browser drives a live Chrome tab through chromedp and exposes it
// as a dom.Page.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/amishk599/jobradar/internal/dom"
)

// Options configure the browser process and its pages.
type Options struct {
	Headless     bool
	ExecPath     string
	PollInterval time.Duration
	UserAgent    string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Browser is one Chrome process. Pages are tabs inside it.
type Browser struct {
	opts         Options
	allocCtx     context.Context
	browserCtx   context.Context
	cancelAlloc  context.CancelFunc
	cancelBrowse context.CancelFunc
	logger       *slog.Logger
}

// Launch starts Chrome. The process lives until Close or until ctx ends.
func Launch(ctx context.Context, opts Options, logger *slog.Logger) (*Browser, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	b := &Browser{opts: opts, logger: logger}
	b.allocCtx, b.cancelAlloc = chromedp.NewExecAllocator(ctx, allocOpts...)
	b.browserCtx, b.cancelBrowse = chromedp.NewContext(b.allocCtx)

	// An empty Run starts the process so launch errors surface here.
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	logger.Info("browser started", "headless", opts.Headless)
	return b, nil
}

// Close stops Chrome and every page opened from it.
func (b *Browser) Close() {
	b.cancelBrowse()
	b.cancelAlloc()
}

// Page is a browser tab implementing dom.Page.
type Page struct {
	id      string
	tabCtx  context.Context
	cancel  context.CancelFunc
	poll    time.Duration
	changes chan struct{}
	logger  *slog.Logger
}

var _ dom.Page = (*Page)(nil)

// Open creates a tab, navigates it to url and starts watching it for
// mutations until the page is closed.
func (b *Browser) Open(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &Page{
		id:      uuid.NewString(),
		tabCtx:  tabCtx,
		cancel:  cancel,
		poll:    b.opts.PollInterval,
		changes: make(chan struct{}, 1),
		logger:  b.logger,
	}

	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("opening %s: %w", url, err)
	}
	p.logger.Info("page opened", "page", p.id, "url", url)

	go p.watch()
	return p, nil
}

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}

// run executes actions on the tab, giving up when either ctx or the tab ends.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *Page) ID() string { return p.id }

func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

func (p *Page) Snapshot(ctx context.Context) (dom.Node, error) {
	var markup string
	if err := p.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return dom.Node{}, fmt.Errorf("snapshot: %w", err)
	}
	return dom.Parse(markup)
}

func (p *Page) Click(ctx context.Context, target dom.Node) error {
	return p.invoke(ctx, "click", clickFunc, target.Path())
}

func (p *Page) ScrollIntoView(ctx context.Context, target dom.Node) error {
	return p.invoke(ctx, "scroll", scrollFunc, target.Path())
}

func (p *Page) InsertBadge(ctx context.Context, target dom.Node, markup string) error {
	return p.invoke(ctx, "insert badge", badgeFunc, target.Path(), dom.BadgeAttr, markup)
}

func (p *Page) Changes() <-chan struct{} {
	return p.changes
}

// invoke calls a script taking the element path first. The script reports
// false when the path no longer resolves.
func (p *Page) invoke(ctx context.Context, op, fn, path string, args ...any) error {
	script, err := call(fn, append([]any{path}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("%s %q: %w", op, path, err)
	}
	if !found {
		return fmt.Errorf("%s: element %q not found", op, path)
	}
	return nil
}

// watch polls the mutation counter and location, and signals Changes when
// either moved.
func (p *Page) watch() {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	var t tracker
	for {
		select {
		case <-p.tabCtx.Done():
			return
		case <-ticker.C:
		}

		var s pageState
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := p.run(ctx, chromedp.Evaluate(observeScript, &s))
		cancel()
		if err != nil {
			if p.tabCtx.Err() != nil {
				return
			}
			p.logger.Debug("page poll failed", "page", p.id, "error", err)
			continue
		}
		if t.changed(s) {
			select {
			case p.changes <- struct{}{}:
			default:
			}
		}
	}
}
