package strategy

import (
	"context"
	"log/slog"
	"net/http"

	"offgate/internal/cache"
)

// CacheFirst checks the cache before the network. Used for the app
// shell, where availability matters most: a cached entry is returned
// without any network call at all, stale or not.
//
// On a cache miss with the network down, this strategy returns the same
// 503 offline sentinel as network-first. The two paths share one
// degradation contract so callers only have to detect a single shape.
type CacheFirst struct {
	partition *cache.Partition
	fetch     Fetcher
}

// NewCacheFirst creates the cache-first strategy over the given
// partition and fetcher.
func NewCacheFirst(partition *cache.Partition, fetch Fetcher) *CacheFirst {
	return &CacheFirst{partition: partition, fetch: fetch}
}

// Name returns the strategy identifier.
func (s *CacheFirst) Name() string { return NameCacheFirst }

// Execute returns the cached entry when present; otherwise fetches,
// stores a copy on success, and returns the live response.
func (s *CacheFirst) Execute(ctx context.Context, req *http.Request) (*cache.Snapshot, error) {
	key := cache.NewKey(req)

	cached, err := s.partition.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed, falling through to network", "key", key, "error", err)
	}
	if cached != nil {
		cacheHits.WithLabelValues(s.Name(), s.partition.Name()).Inc()
		return cached, nil
	}

	cacheMisses.WithLabelValues(s.Name(), s.partition.Name()).Inc()

	resp, err := s.fetch.Do(ctx, req)
	if err != nil {
		offlineFallbacks.WithLabelValues(s.Name()).Inc()
		slog.Debug("shell fetch failed with no cached entry", "key", key, "error", err)
		return Offline(), nil
	}

	snap, err := snapshotResponse(resp)
	if err != nil {
		offlineFallbacks.WithLabelValues(s.Name()).Inc()
		return Offline(), nil
	}

	if snap.Cacheable() {
		if perr := s.partition.Put(ctx, key, snap); perr != nil {
			slog.Warn("failed to store shell response", "key", key, "error", perr)
		}
	}
	return snap, nil
}
