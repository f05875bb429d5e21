package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("GetSetRoundTrip", func(t *testing.T) {
		store := newTestSQLite(t)
		key := Key{Method: http.MethodGet, URL: "/products?page=2"}

		got, err := store.Get(ctx, "api-v1", key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Fatal("expected miss on empty store")
		}

		snap := &Snapshot{
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{"application/json"}},
			Body:   []byte(`{"page":2}`),
		}
		if err := store.Put(ctx, "api-v1", key, snap); err != nil {
			t.Fatalf("unexpected error on put: %v", err)
		}

		got, err = store.Get(ctx, "api-v1", key)
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if got == nil {
			t.Fatal("expected snapshot after put")
		}
		if got.Status != http.StatusOK || string(got.Body) != `{"page":2}` {
			t.Errorf("round trip mismatch: %+v", got)
		}
	})

	t.Run("UpsertReplacesEntry", func(t *testing.T) {
		store := newTestSQLite(t)
		key := Key{Method: http.MethodGet, URL: "/"}

		for _, body := range []string{"v1", "v2"} {
			if err := store.Put(ctx, "core-v1", key, &Snapshot{Status: 200, Header: http.Header{}, Body: []byte(body)}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		got, err := store.Get(ctx, "core-v1", key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got.Body) != "v2" {
			t.Errorf("expected replaced entry, got %q", got.Body)
		}
	})

	t.Run("LargeBodySurvivesCompression", func(t *testing.T) {
		store := newTestSQLite(t)
		key := Key{Method: http.MethodGet, URL: "/_next/static/chunks/main.js"}
		body := strings.Repeat("function render(){return null};", 500)

		if err := store.Put(ctx, "assets-v1", key, &Snapshot{Status: 200, Header: http.Header{}, Body: []byte(body)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.Get(ctx, "assets-v1", key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got.Body) != body {
			t.Error("large body did not survive the round trip")
		}
	})

	t.Run("PurgeAndPartitions", func(t *testing.T) {
		store := newTestSQLite(t)
		key := Key{Method: http.MethodGet, URL: "/"}

		for _, p := range []string{"core-v1", "core-v2"} {
			if err := store.Put(ctx, p, key, &Snapshot{Status: 200, Header: http.Header{}}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		names, err := store.Partitions(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(names) != 2 {
			t.Fatalf("expected 2 partitions, got %v", names)
		}

		if err := store.Purge(ctx, "core-v1"); err != nil {
			t.Fatalf("unexpected error on purge: %v", err)
		}

		names, err = store.Partitions(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(names) != 1 || names[0] != "core-v2" {
			t.Errorf("expected only core-v2 to survive, got %v", names)
		}
	})

	t.Run("PersistsAcrossReopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")
		key := Key{Method: http.MethodGet, URL: "/manifest.json"}

		store, err := NewSQLite(SQLiteConfig{Path: path})
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		if err := store.Put(ctx, "core-v1", key, &Snapshot{Status: 200, Header: http.Header{}, Body: []byte("{}")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("unexpected error on close: %v", err)
		}

		reopened, err := NewSQLite(SQLiteConfig{Path: path})
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		defer reopened.Close()

		got, err := reopened.Get(ctx, "core-v1", key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected entry to survive reopen")
		}
	})
}
