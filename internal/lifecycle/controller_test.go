package lifecycle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"offgate/internal/cache"
)

// fakeOrigin serves scripted bodies by path during install pre-warm.
type fakeOrigin struct {
	mu     sync.Mutex
	bodies map[string]string
	status map[string]int
	down   bool
	seen   []string
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{
		bodies: map[string]string{},
		status: map[string]int{},
	}
}

func (f *fakeOrigin) serve(path, body string) *fakeOrigin {
	f.bodies[path] = body
	return f
}

func (f *fakeOrigin) Get(ctx context.Context, path string) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		return nil, errors.New("connection refused")
	}
	f.seen = append(f.seen, path)

	body, ok := f.bodies[path]
	status := http.StatusOK
	if s, forced := f.status[path]; forced {
		status = s
	} else if !ok {
		status = http.StatusNotFound
	}

	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func newTestManager(t *testing.T) (*cache.Manager, cache.Store) {
	t.Helper()
	store := cache.NewMemory()
	t.Cleanup(func() { store.Close() })
	m, err := cache.NewManager(store, "v1")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m, store
}

func TestInstall(t *testing.T) {
	ctx := context.Background()

	t.Run("PrewarmsShellAssets", func(t *testing.T) {
		manager, _ := newTestManager(t)
		origin := newFakeOrigin().
			serve("/", "<html>").
			serve("/manifest.json", "{}").
			serve("/JK_Logo.jpg", "jpeg-bytes")

		c := New(manager, origin, Config{})
		if err := c.Install(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		core := manager.Partition(cache.PartitionCore)
		for _, path := range DefaultPrecachePaths {
			snap, err := core.Get(ctx, cache.Key{Method: http.MethodGet, URL: path})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if snap == nil {
				t.Errorf("expected %s to be pre-cached", path)
			}
		}

		if !c.Activated() {
			t.Error("expected controller to be activated after install")
		}
	})

	t.Run("FetchFailureFailsInstall", func(t *testing.T) {
		manager, _ := newTestManager(t)
		origin := newFakeOrigin().serve("/", "<html>")
		origin.serve("/manifest.json", "{}")
		// /JK_Logo.jpg is not served, so it returns 404

		c := New(manager, origin, Config{})
		if err := c.Install(ctx); err == nil {
			t.Fatal("expected install to fail when an asset cannot be fetched")
		}
		if c.Activated() {
			t.Error("failed install must not activate")
		}
		if c.State() != StateInstalling {
			t.Errorf("expected installing state after failure, got %s", c.State())
		}
	})

	t.Run("NetworkDownFailsInstall", func(t *testing.T) {
		manager, _ := newTestManager(t)
		origin := newFakeOrigin()
		origin.down = true

		c := New(manager, origin, Config{})
		if err := c.Install(ctx); err == nil {
			t.Fatal("expected install to fail with the origin down")
		}
	})

	t.Run("CustomPrecachePaths", func(t *testing.T) {
		manager, _ := newTestManager(t)
		origin := newFakeOrigin().serve("/", "<html>").serve("/offline.html", "offline page")

		c := New(manager, origin, Config{PrecachePaths: []string{"/", "/offline.html"}})
		if err := c.Install(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap, err := manager.Partition(cache.PartitionCore).Get(ctx, cache.Key{Method: http.MethodGet, URL: "/offline.html"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap == nil {
			t.Error("custom pre-cache path was not stored")
		}
	})
}

func TestActivationPrunesStalePartitions(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	defer store.Close()

	// Leftovers from a previous cache version
	key := cache.Key{Method: http.MethodGet, URL: "/"}
	for _, p := range []string{"core-v0", "assets-v0"} {
		if err := store.Put(ctx, p, key, &cache.Snapshot{Status: 200, Header: http.Header{}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	manager, err := cache.NewManager(store, "v1")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	origin := newFakeOrigin().serve("/", "<html>").serve("/manifest.json", "{}").serve("/JK_Logo.jpg", "jpeg")

	c := New(manager, origin, Config{})
	if err := c.Install(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names, err := store.Partitions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range names {
		if name == "core-v0" || name == "assets-v0" {
			t.Errorf("stale partition %s survived activation", name)
		}
	}
}

func TestHoldForSignal(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)
	origin := newFakeOrigin().serve("/", "<html>").serve("/manifest.json", "{}").serve("/JK_Logo.jpg", "jpeg")

	c := New(manager, origin, Config{HoldForSignal: true})
	if err := c.Install(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.State() != StateInstalled {
		t.Fatalf("expected installed state while holding, got %s", c.State())
	}
	if c.Activated() {
		t.Fatal("held controller must not be activated")
	}

	if err := c.SkipWaiting(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Activated() {
		t.Fatal("expected activation after skip-waiting signal")
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done channel not closed after activation")
	}

	// Idempotent
	if err := c.SkipWaiting(ctx); err != nil {
		t.Errorf("repeated skip-waiting should be a no-op, got %v", err)
	}
}

func TestSkipWaitingDuringInstall(t *testing.T) {
	manager, _ := newTestManager(t)
	origin := newFakeOrigin()

	c := New(manager, origin, Config{HoldForSignal: true})
	if err := c.SkipWaiting(context.Background()); err == nil {
		t.Fatal("expected error while install is still in progress")
	}
}

func TestControllerID(t *testing.T) {
	manager, _ := newTestManager(t)
	origin := newFakeOrigin()

	a := New(manager, origin, Config{})
	b := New(manager, origin, Config{})
	if a.ID() == "" {
		t.Fatal("expected non-empty worker id")
	}
	if a.ID() == b.ID() {
		t.Error("expected distinct worker ids per instance")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInstalling, "installing"},
		{StateInstalled, "installed"},
		{StateActivating, "activating"},
		{StateActivated, "activated"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
