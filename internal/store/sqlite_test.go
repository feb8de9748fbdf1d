package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/amishk599/jobradar/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "job:123", `{"id":"123"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := s.Get(ctx, "job:123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != `{"id":"123"}` {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestGetUnknownReturnsFalse(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown key")
	}
}

func TestSetReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "matching", "[1]"); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if err := s.Set(ctx, "matching", "[2]"); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	v, _, err := s.Get(ctx, "matching")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "[2]" {
		t.Errorf("Get = %q, want the latest value", v)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Set(ctx, "job:1", "x")
	if err := s.Delete(ctx, "job:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "job:1"); ok {
		t.Error("expected key to be gone after Delete")
	}
	if err := s.Delete(ctx, "job:1"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	s.Set(ctx, "k", "v")
	s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("after reopen Get = %q, %v", v, ok)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range map[string]model.Store{
		"sqlite": newTestStore(t),
		"memory": NewMemoryStore(),
	} {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := LoadSettings(ctx, s); err != nil || ok {
				t.Fatalf("LoadSettings on empty store: ok=%v err=%v", ok, err)
			}

			want := model.Settings{Credential: "sk-test", Criteria: "remote Go", Resume: "10y backend", Budget: 25}
			if err := SaveSettings(ctx, s, want); err != nil {
				t.Fatalf("SaveSettings: %v", err)
			}
			got, ok, err := LoadSettings(ctx, s)
			if err != nil || !ok {
				t.Fatalf("LoadSettings: ok=%v err=%v", ok, err)
			}
			if got != want {
				t.Errorf("settings = %+v, want %+v", got, want)
			}
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "etcd", "", "ns"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
