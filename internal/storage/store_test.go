package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStore_SetAndGet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")

	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Missing key is not an error
	v, err := store.Get(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("expected empty value, got %q (%v)", v, err)
	}

	if err := store.Set(ctx, "sim:cash", "100000"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "sim:cash", "95000"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	v, err = store.Get(ctx, "sim:cash")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "95000" {
		t.Errorf("expected 95000, got %q", v)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")
	ctx := context.Background()

	s1, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}
	if err := s1.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s1.Close()

	s2, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("open 2: %v", err)
	}
	defer s2.Close()

	if v, _ := s2.Get(ctx, "k"); v != "v" {
		t.Errorf("expected v after reopen, got %q", v)
	}
}

func TestMemoryKV(t *testing.T) {
	var kv KV = NewMemoryKV()
	ctx := context.Background()
	_ = kv.Set(ctx, "a", "1")
	if v, _ := kv.Get(ctx, "a"); v != "1" {
		t.Errorf("expected 1, got %q", v)
	}
}

// rejectKey makes SQLite abort any insert of key, failing a batch midway.
func rejectKey(t *testing.T, s *Store, key string) {
	t.Helper()
	_, err := s.db.Exec(`CREATE TRIGGER reject_key BEFORE INSERT ON metadata
		WHEN NEW.key = '` + key + `' BEGIN SELECT RAISE(ABORT, 'rejected'); END;`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
}

func TestStore_SetManyIsAtomic(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.SetMany(ctx, map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}
	if v, _ := store.Get(ctx, "b"); v != "2" {
		t.Errorf("expected 2, got %q", v)
	}

	rejectKey(t, store, "bad")
	if err := store.SetMany(ctx, map[string]string{"a": "10", "c": "3", "bad": "x"}); err == nil {
		t.Fatal("expected batch to fail")
	}
	if v, _ := store.Get(ctx, "a"); v != "1" {
		t.Errorf("failed batch changed a: %q", v)
	}
	if v, _ := store.Get(ctx, "c"); v != "" {
		t.Errorf("failed batch wrote c: %q", v)
	}
}
