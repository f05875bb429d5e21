package cache

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements Store using in-process go-cache instances, one
// per partition. Suitable for single-instance deployments; contents are
// lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]*gocache.Cache
}

// NewMemory creates a new in-memory store. Entries never expire on their
// own; the only cleanup is whole-partition purging.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]*gocache.Cache),
	}
}

// Get retrieves a snapshot from the named partition.
func (m *MemoryStore) Get(ctx context.Context, partition string, key Key) (*Snapshot, error) {
	m.mu.RLock()
	p, ok := m.partitions[partition]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	v, found := p.Get(key.Hash())
	if !found {
		return nil, nil // No entry, not an error
	}
	return v.(*Snapshot).Clone(), nil
}

// Put stores a snapshot, creating the partition on first write.
func (m *MemoryStore) Put(ctx context.Context, partition string, key Key, snap *Snapshot) error {
	m.mu.Lock()
	p, ok := m.partitions[partition]
	if !ok {
		p = gocache.New(gocache.NoExpiration, 0)
		m.partitions[partition] = p
	}
	m.mu.Unlock()

	p.Set(key.Hash(), snap.Clone(), gocache.NoExpiration)
	return nil
}

// Purge drops the named partition entirely.
func (m *MemoryStore) Purge(ctx context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions, partition)
	return nil
}

// Partitions lists partitions that currently exist.
func (m *MemoryStore) Partitions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.partitions))
	for name := range m.partitions {
		names = append(names, name)
	}
	return names, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
