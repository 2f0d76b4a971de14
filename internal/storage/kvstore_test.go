package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileKeyValueStore_PutGetDelete(t *testing.T) {
	store := NewFileKeyValueStore(t.TempDir(), "engine_state")

	if _, ok := store.Get("missing"); ok {
		t.Error("Get on empty store returned a value")
	}

	store.Put("experiments", "- id: exp-1")
	if v, ok := store.Get("experiments"); !ok || v != "- id: exp-1" {
		t.Errorf("Get = %q,%v", v, ok)
	}

	store.Delete("experiments")
	if _, ok := store.Get("experiments"); ok {
		t.Error("Get after Delete returned a value")
	}
}

func TestFileKeyValueStore_KeysSorted(t *testing.T) {
	store := NewFileKeyValueStore(t.TempDir(), "engine_state")
	store.Put("samples", "x")
	store.Put("alerts", "y")
	store.Put("metrics", "z")

	keys := store.Keys()
	want := []string{"alerts", "metrics", "samples"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestFileKeyValueStore_FlushAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewFileKeyValueStore(dir, "engine_state")
	store.Put("params", "cache_ttl_seconds: 300")
	store.Put("backlog", "[]")
	if err := store.Flush(); err != nil {
		t.Fatalf("flushing: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "engine_state.yaml")); err != nil {
		t.Fatalf("backing file missing: %v", err)
	}

	reopened := NewFileKeyValueStore(dir, "engine_state")
	if err := reopened.Load(); err != nil {
		t.Fatalf("loading: %v", err)
	}
	if v, ok := reopened.Get("params"); !ok || v != "cache_ttl_seconds: 300" {
		t.Errorf("reloaded params = %q,%v", v, ok)
	}
	if v, ok := reopened.Get("backlog"); !ok || v != "[]" {
		t.Errorf("reloaded backlog = %q,%v", v, ok)
	}
}

func TestFileKeyValueStore_LoadMissingFileIsEmpty(t *testing.T) {
	store := NewFileKeyValueStore(t.TempDir(), "engine_state")
	if err := store.Load(); err != nil {
		t.Fatalf("loading missing file: %v", err)
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Errorf("keys = %v, want empty", keys)
	}
}

func TestFileKeyValueStore_LoadReplacesUnflushedWrites(t *testing.T) {
	dir := t.TempDir()

	store := NewFileKeyValueStore(dir, "engine_state")
	store.Put("persisted", "yes")
	if err := store.Flush(); err != nil {
		t.Fatalf("flushing: %v", err)
	}

	store.Put("unflushed", "lost")
	if err := store.Load(); err != nil {
		t.Fatalf("loading: %v", err)
	}

	if _, ok := store.Get("unflushed"); ok {
		t.Error("unflushed write survived a Load")
	}
	if v, ok := store.Get("persisted"); !ok || v != "yes" {
		t.Errorf("persisted = %q,%v", v, ok)
	}
}

func TestFileKeyValueStore_FlushCreatesBasePath(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	store := NewFileKeyValueStore(nested, "engine_state")
	store.Put("k", "v")
	if err := store.Flush(); err != nil {
		t.Fatalf("flushing into missing directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nested, "engine_state.yaml")); err != nil {
		t.Errorf("backing file missing: %v", err)
	}
}
