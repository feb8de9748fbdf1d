// Package results reads, prints, exports and browses the matching and
// rejected collections kept by the analysis cache.
package results

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/amishk599/jobradar/internal/cache"
	"github.com/amishk599/jobradar/internal/extract"
	"github.com/amishk599/jobradar/internal/model"
)

// ErrNotFound is returned by Remove when no collection holds the id.
var ErrNotFound = errors.New("listing not found in any collection")

// Source is the part of the cache this package needs.
type Source interface {
	Collection(ctx context.Context, name string) ([]model.CacheEntry, error)
	Remove(ctx context.Context, name, id string) (bool, error)
}

var _ Source = (*cache.Cache)(nil)

// Set holds both collections, newest evaluation first.
type Set struct {
	Matching []model.CacheEntry
	Rejected []model.CacheEntry
}

// Load reads both collections from src.
func Load(ctx context.Context, src Source) (Set, error) {
	matching, err := src.Collection(ctx, cache.Matching)
	if err != nil {
		return Set{}, err
	}
	rejected, err := src.Collection(ctx, cache.Rejected)
	if err != nil {
		return Set{}, err
	}
	sortByCompleted(matching)
	sortByCompleted(rejected)
	return Set{Matching: matching, Rejected: rejected}, nil
}

// Pick returns the collection called name ("matching" or "rejected").
func (s Set) Pick(name string) ([]model.CacheEntry, error) {
	switch name {
	case cache.Matching:
		return s.Matching, nil
	case cache.Rejected:
		return s.Rejected, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", name)
	}
}

// Remove deletes id from whichever collection holds it and returns that
// collection's name.
func Remove(ctx context.Context, src Source, id string) (string, error) {
	for _, name := range []string{cache.Matching, cache.Rejected} {
		removed, err := src.Remove(ctx, name, id)
		if err != nil {
			return "", fmt.Errorf("removing %s from %s: %w", id, name, err)
		}
		if removed {
			return name, nil
		}
	}
	return "", fmt.Errorf("%s: %w", id, ErrNotFound)
}

// WriteTable prints entries as a table.
func WriteTable(w io.Writer, entries []model.CacheEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "(no listings)")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "VERDICT", "TITLE", "COMPANY", "LOCATION", "EVALUATED")
	for _, e := range entries {
		t.Row(e.ID, string(e.Verdict), clip(e.Title, 48), clip(e.Company, 28), clip(e.Location, 28), formatTime(e))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Rationale returns the rationale of e as plain text.
func Rationale(e model.CacheEntry) string {
	return extract.PlainText(e.RationaleMarkup)
}

func formatTime(e model.CacheEntry) string {
	if e.CompletedAt.IsZero() {
		return "n/a"
	}
	return e.CompletedAt.Local().Format("2006-01-02 15:04")
}

func sortByCompleted(list []model.CacheEntry) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CompletedAt.After(list[j].CompletedAt)
	})
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
