// Package store provides the durable key/value backends behind the analysis
// cache and the settings record.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amishk599/jobradar/internal/model"
)

// SettingsKey is where the settings record is persisted.
const SettingsKey = "settings"

// Open returns the store for driver: sqlite, redis, postgres or memory.
func Open(ctx context.Context, driver, dsn, namespace string) (model.Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteStore(dsn)
	case "redis":
		return NewRedisStore(ctx, dsn, namespace)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// LoadSettings reads the settings record. ok is false when none was saved.
func LoadSettings(ctx context.Context, s model.Store) (model.Settings, bool, error) {
	raw, ok, err := s.Get(ctx, SettingsKey)
	if err != nil || !ok {
		return model.Settings{}, false, err
	}
	var settings model.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return model.Settings{}, false, fmt.Errorf("decoding settings: %w", err)
	}
	return settings, true, nil
}

// SaveSettings replaces the settings record.
func SaveSettings(ctx context.Context, s model.Store, settings model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return s.Set(ctx, SettingsKey, string(data))
}
