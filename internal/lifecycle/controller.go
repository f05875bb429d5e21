// Package lifecycle drives the gateway through its worker states:
// installing, installed, activating, activated. Install pre-warms the
// shell cache, activation garbage-collects partitions left behind by
// previous cache versions and switches interception on.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"offgate/internal/cache"
)

// State is the controller's position in the worker lifecycle.
type State int32

const (
	StateInstalling State = iota
	StateInstalled
	StateActivating
	StateActivated
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	default:
		return "activated"
	}
}

// Prewarmer fetches origin-relative paths during install.
type Prewarmer interface {
	Get(ctx context.Context, path string) (*http.Response, error)
}

// Config holds lifecycle options.
type Config struct {
	// PrecachePaths are the shell assets fetched and stored during
	// install (default: /, /manifest.json, /JK_Logo.jpg).
	PrecachePaths []string

	// HoldForSignal keeps the controller in the installed state until a
	// skip-waiting message arrives, instead of activating immediately
	// after install. Off by default: fast rollout wins over strict
	// version consistency.
	HoldForSignal bool
}

// DefaultPrecachePaths is the fixed shell asset set stored at install.
var DefaultPrecachePaths = []string{"/", "/manifest.json", "/JK_Logo.jpg"}

// Controller owns the lifecycle state machine. All transitions are
// one-way; Activate and SkipWaiting are idempotent.
type Controller struct {
	id      string
	manager *cache.Manager
	fetch   Prewarmer
	paths   []string
	hold    bool

	state     atomic.Int32
	activated chan struct{}
	once      sync.Once
}

// New creates a Controller in the installing state.
func New(manager *cache.Manager, fetch Prewarmer, cfg Config) *Controller {
	paths := cfg.PrecachePaths
	if len(paths) == 0 {
		paths = DefaultPrecachePaths
	}
	return &Controller{
		id:        uuid.NewString(),
		manager:   manager,
		fetch:     fetch,
		paths:     paths,
		hold:      cfg.HoldForSignal,
		activated: make(chan struct{}),
	}
}

// ID returns this worker instance's identifier.
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Activated reports whether the controller has reached the activated
// state and interception is live.
func (c *Controller) Activated() bool {
	return c.State() == StateActivated
}

// Done is closed once the controller reaches the activated state.
func (c *Controller) Done() <-chan struct{} {
	return c.activated
}

// Install pre-warms the core partition with the configured shell assets,
// then either activates immediately or holds for a skip-waiting signal.
// A pre-warm fetch failure fails the install, mirroring an atomic
// install contract: either the whole shell set is stored or the install
// is reported failed. Already-stored entries are left in place.
func (c *Controller) Install(ctx context.Context) error {
	slog.Info("installing", "worker_id", c.id, "assets", len(c.paths))

	core := c.manager.Partition(cache.PartitionCore)

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range c.paths {
		g.Go(func() error {
			resp, err := c.fetch.Get(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to pre-warm %s: %w", path, err)
			}
			defer resp.Body.Close()

			snap, err := cache.NewSnapshot(resp)
			if err != nil {
				return fmt.Errorf("failed to pre-warm %s: %w", path, err)
			}
			if !snap.Cacheable() {
				return fmt.Errorf("failed to pre-warm %s: upstream returned %d", path, snap.Status)
			}

			key := cache.Key{Method: http.MethodGet, URL: path}
			if err := core.Put(gctx, key, snap); err != nil {
				return fmt.Errorf("failed to pre-warm %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.state.Store(int32(StateInstalled))
	slog.Info("installed", "worker_id", c.id)

	if c.hold {
		slog.Info("holding for skip-waiting signal", "worker_id", c.id)
		return nil
	}
	return c.Activate(ctx)
}

// Activate prunes partitions from previous cache versions and switches
// interception on for all traffic, current requests included. Safe to
// call more than once; only the first call does work.
func (c *Controller) Activate(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.state.Store(int32(StateActivating))
		slog.Info("activating", "worker_id", c.id)

		if perr := c.manager.PruneStale(ctx); perr != nil {
			// Stale partitions are an inefficiency, not a correctness
			// problem; activation proceeds.
			slog.Warn("failed to prune stale partitions", "error", perr)
			err = perr
		}

		c.state.Store(int32(StateActivated))
		close(c.activated)
		slog.Info("activated", "worker_id", c.id)
	})
	return err
}

// SkipWaiting transitions a held worker out of the installed state
// immediately. Used by the control endpoint when the application's own
// update flow forces the new version live on user consent.
func (c *Controller) SkipWaiting(ctx context.Context) error {
	if c.State() == StateInstalling {
		return fmt.Errorf("install still in progress")
	}
	return c.Activate(ctx)
}
