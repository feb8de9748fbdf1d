package store

import (
	"context"
	"os"
	"testing"
)

// Set JOBRADAR_TEST_POSTGRES_DSN to run these against a real database.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("JOBRADAR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JOBRADAR_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_SetGetDelete(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	key := "job:test-" + t.Name()
	t.Cleanup(func() { s.Delete(context.Background(), key) })

	if err := s.Set(ctx, key, "[1]"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, key, "[2]"); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok || v != "[2]" {
		t.Fatalf("Get = %q, %v, %v; want the replaced value", v, ok, err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Errorf("Get after Delete = %v, %v", ok, err)
	}
}

func TestNewPostgresStore_BadURL(t *testing.T) {
	if _, err := NewPostgresStore(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected error for an unparseable database URL")
	}
}
