package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metric for partition garbage collection
var partitionPrunes = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "offgate_partition_prunes_total",
		Help: "Total number of stale cache partitions deleted on activation",
	},
)

// Logical partition names. Physical partition names carry the cache
// version as a suffix, e.g. "core-v2".
const (
	PartitionCore   = "core"
	PartitionAssets = "assets"
	PartitionAPI    = "api"
)

// logicalPartitions is the fixed set of partitions the gateway manages.
var logicalPartitions = []string{PartitionCore, PartitionAssets, PartitionAPI}

// Manager owns the gateway's three partitions on top of a Store and
// handles version-based garbage collection: bumping the version
// implicitly starts with empty partitions, and PruneStale removes the
// previous version's data.
type Manager struct {
	store   Store
	version string
}

// NewManager creates a Manager for the given store and cache version.
// Version must be non-empty; it becomes part of every physical
// partition name.
func NewManager(store Store, version string) (*Manager, error) {
	if version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	return &Manager{store: store, version: version}, nil
}

// Partition returns a handle for the named logical partition.
func (m *Manager) Partition(logical string) *Partition {
	return &Partition{
		store: m.store,
		name:  logical + "-" + m.version,
	}
}

// CurrentNames returns the physical partition names belonging to the
// current version.
func (m *Manager) CurrentNames() []string {
	names := make([]string, len(logicalPartitions))
	for i, logical := range logicalPartitions {
		names[i] = logical + "-" + m.version
	}
	return names
}

// PruneStale deletes every partition whose name is not in the current
// version's set. Invoked once per activation; deletion is irreversible.
func (m *Manager) PruneStale(ctx context.Context) error {
	existing, err := m.store.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate partitions: %w", err)
	}

	current := m.CurrentNames()
	for _, name := range existing {
		if slices.Contains(current, name) {
			continue
		}
		if err := m.store.Purge(ctx, name); err != nil {
			return fmt.Errorf("failed to prune partition %s: %w", name, err)
		}
		partitionPrunes.Inc()
		slog.Info("pruned stale cache partition", "partition", name)
	}
	return nil
}

// Partition is a handle bound to one physical partition of the store.
type Partition struct {
	store Store
	name  string
}

// Name returns the physical partition name.
func (p *Partition) Name() string {
	return p.name
}

// Get retrieves the snapshot stored for the key, or nil if absent.
func (p *Partition) Get(ctx context.Context, key Key) (*Snapshot, error) {
	return p.store.Get(ctx, p.name, key)
}

// Put stores the snapshot for the key, overwriting any prior entry.
func (p *Partition) Put(ctx context.Context, key Key, snap *Snapshot) error {
	return p.store.Put(ctx, p.name, key, snap)
}
