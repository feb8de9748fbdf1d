// Package cache holds the latest analysis result per listing, in memory and
// in the durable store, and keeps the matching/rejected collections in sync.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/amishk599/jobradar/internal/model"
)

// Collection names.
const (
	Matching = "matching"
	Rejected = "rejected"
)

// CollectionFor returns the collection a verdict belongs to, or "" for
// Unknown.
func CollectionFor(v model.Verdict) string {
	switch v.Normalize() {
	case model.VerdictFit:
		return Matching
	case model.VerdictNoFit:
		return Rejected
	default:
		return ""
	}
}

func entryKey(id string) string { return "job:" + id }

// Cache is the analysis cache. Durable writes are best effort: failures are
// logged and never returned from Put.
type Cache struct {
	store  model.Store
	logger *slog.Logger

	mu          sync.Mutex
	entries     map[string]model.CacheEntry
	collections map[string][]model.CacheEntry // loaded collections only
}

// New creates a cache backed by store.
func New(store model.Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:       store,
		logger:      logger,
		entries:     make(map[string]model.CacheEntry),
		collections: make(map[string][]model.CacheEntry),
	}
}

// Get returns the entry for id from memory, falling back to the durable
// per-id record. A miss in both means the listing was never evaluated.
func (c *Cache) Get(ctx context.Context, id string) (model.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		return e, true
	}

	raw, ok, err := c.store.Get(ctx, entryKey(id))
	if err != nil {
		c.logger.Warn("cache read failed", "id", id, "error", fmt.Errorf("%w: %w", model.ErrPersistence, err))
		return model.CacheEntry{}, false
	}
	if !ok {
		return model.CacheEntry{}, false
	}
	var e model.CacheEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.logger.Warn("cache record corrupt", "id", id, "error", err)
		return model.CacheEntry{}, false
	}
	e.Verdict = e.Verdict.Normalize()
	c.entries[id] = e
	return e, true
}

// Put records entry as the latest result for id. A definite verdict upserts
// the entry into its collection, removes it from the other one and is
// written through. An Unknown verdict is kept in memory only and drops any
// durable record for id, so a later run evaluates the listing again.
func (c *Cache) Put(ctx context.Context, id string, entry model.CacheEntry) {
	entry.ID = id
	entry.Verdict = entry.Verdict.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = entry

	target := CollectionFor(entry.Verdict)
	if target == "" {
		if err := c.store.Delete(ctx, entryKey(id)); err != nil {
			c.logger.Warn("cache delete failed", "id", id, "error", fmt.Errorf("%w: %w", model.ErrPersistence, err))
		}
		return
	}

	if data, err := json.Marshal(entry); err != nil {
		c.logger.Warn("cache encode failed", "id", id, "error", err)
	} else if err := c.store.Set(ctx, entryKey(id), string(data)); err != nil {
		c.logger.Warn("cache write failed", "id", id, "error", fmt.Errorf("%w: %w", model.ErrPersistence, err))
	}

	if list, ok := c.loadLocked(ctx, target); ok {
		c.saveLocked(ctx, target, upsert(list, entry))
	}

	other := Rejected
	if target == Rejected {
		other = Matching
	}
	if list, ok := c.loadLocked(ctx, other); ok {
		if kept, removed := without(list, id); removed {
			c.saveLocked(ctx, other, kept)
		}
	}
}

// Collection returns a copy of the named collection in stored order.
func (c *Cache) Collection(ctx context.Context, name string) ([]model.CacheEntry, error) {
	if name != Matching && name != Rejected {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.loadLocked(ctx, name)
	if !ok {
		return nil, fmt.Errorf("loading %s: %w", name, model.ErrPersistence)
	}
	return append([]model.CacheEntry(nil), list...), nil
}

// Remove deletes id from the named collection and forgets its cached result,
// so the listing is evaluated again next time. Reports whether it was there.
func (c *Cache) Remove(ctx context.Context, name, id string) (bool, error) {
	if name != Matching && name != Rejected {
		return false, fmt.Errorf("unknown collection %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.loadLocked(ctx, name)
	if !ok {
		return false, fmt.Errorf("loading %s: %w", name, model.ErrPersistence)
	}
	kept, removed := without(list, id)
	if !removed {
		return false, nil
	}
	if err := c.persistLocked(ctx, name, kept); err != nil {
		return false, err
	}
	delete(c.entries, id)
	if err := c.store.Delete(ctx, entryKey(id)); err != nil {
		return true, fmt.Errorf("deleting %s: %w: %w", id, model.ErrPersistence, err)
	}
	return true, nil
}

// loadLocked returns the named collection, loading and deduplicating it from
// the durable store the first time. ok is false if the store failed.
func (c *Cache) loadLocked(ctx context.Context, name string) ([]model.CacheEntry, bool) {
	if list, ok := c.collections[name]; ok {
		return list, true
	}

	raw, found, err := c.store.Get(ctx, name)
	if err != nil {
		c.logger.Warn("collection load failed", "collection", name, "error", fmt.Errorf("%w: %w", model.ErrPersistence, err))
		return nil, false
	}

	var list []model.CacheEntry
	if found {
		decoded, err := DecodeCollection(raw)
		if err != nil {
			c.logger.Warn("collection corrupt, starting empty", "collection", name, "error", err)
		} else {
			list = Dedup(decoded)
			if len(list) != len(decoded) {
				c.logger.Info("removed duplicate collection entries",
					"collection", name,
					"duplicates", len(decoded)-len(list),
				)
				c.saveLocked(ctx, name, list)
			}
		}
	}
	if list == nil {
		list = []model.CacheEntry{}
	}
	c.collections[name] = list
	return list, true
}

func (c *Cache) saveLocked(ctx context.Context, name string, list []model.CacheEntry) {
	if err := c.persistLocked(ctx, name, list); err != nil {
		c.logger.Warn("collection save failed", "collection", name, "error", err)
	}
}

// persistLocked updates the in-memory collection and writes it through.
func (c *Cache) persistLocked(ctx context.Context, name string, list []model.CacheEntry) error {
	c.collections[name] = list
	data, err := EncodeCollection(list)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, name, data); err != nil {
		return fmt.Errorf("saving %s: %w: %w", name, model.ErrPersistence, err)
	}
	return nil
}

// upsert replaces the same-id entry in place, unconditionally, or appends.
func upsert(list []model.CacheEntry, entry model.CacheEntry) []model.CacheEntry {
	out := append([]model.CacheEntry(nil), list...)
	for i := range out {
		if out[i].ID == entry.ID {
			out[i] = entry
			return out
		}
	}
	return append(out, entry)
}

func without(list []model.CacheEntry, id string) ([]model.CacheEntry, bool) {
	out := make([]model.CacheEntry, 0, len(list))
	removed := false
	for _, e := range list {
		if e.ID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}
