package dom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FilePage serves a saved HTML page from disk and reloads it whenever the
// file is rewritten. Clicks only scroll and activate nothing, so description
// panels must already be present in the saved markup.
type FilePage struct {
	*StaticPage
	path   string
	logger *slog.Logger
}

// OpenFile loads path and starts watching it until ctx is cancelled.
func OpenFile(ctx context.Context, path string, logger *slog.Logger) (*FilePage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("open page file: watcher: %w", err)
	}
	// Watch the directory: editors and browsers replace the file on save.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("open page file: watch %s: %w", filepath.Dir(abs), err)
	}

	fileURL := (&url.URL{Scheme: "file", Path: abs}).String()
	p := &FilePage{
		StaticPage: NewStaticPage("file:"+abs, fileURL, string(data)),
		path:       abs,
		logger:     logger,
	}
	go p.watch(ctx, w)
	return p, nil
}

func (p *FilePage) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != p.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Writes arrive in bursts; reload once they settle.
			reload = time.After(100 * time.Millisecond)
		case <-reload:
			reload = nil
			data, err := os.ReadFile(p.path)
			if err != nil {
				p.logger.Warn("page file reload failed", "path", p.path, "error", err)
				continue
			}
			p.SetHTML(string(data))
			p.logger.Debug("page file reloaded", "path", p.path, "bytes", len(data))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.logger.Warn("page file watcher error", "path", p.path, "error", err)
		}
	}
}
