package cache

import (
	"encoding/json"
	"fmt"

	"github.com/amishk599/jobradar/internal/model"
)

// EncodeCollection serializes a collection as a JSON array.
func EncodeCollection(list []model.CacheEntry) (string, error) {
	if list == nil {
		list = []model.CacheEntry{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encoding collection: %w", err)
	}
	return string(data), nil
}

// DecodeCollection parses a serialized collection. Verdicts are normalized.
func DecodeCollection(raw string) ([]model.CacheEntry, error) {
	var list []model.CacheEntry
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	for i := range list {
		list[i].Verdict = list[i].Verdict.Normalize()
	}
	return list, nil
}

// Dedup collapses entries sharing an id into the one with the newer
// CompletedAt, kept at the position where the id first appeared. On equal
// timestamps the entry seen first wins.
func Dedup(list []model.CacheEntry) []model.CacheEntry {
	index := make(map[string]int, len(list))
	out := make([]model.CacheEntry, 0, len(list))
	for _, e := range list {
		i, seen := index[e.ID]
		if !seen {
			index[e.ID] = len(out)
			out = append(out, e)
			continue
		}
		if e.CompletedAt.After(out[i].CompletedAt) {
			out[i] = e
		}
	}
	return out
}
