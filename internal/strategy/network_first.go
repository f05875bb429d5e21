package strategy

import (
	"context"
	"log/slog"
	"net/http"

	"offgate/internal/cache"
)

// NetworkFirst tries the network before the cache. Used for API data,
// where freshness matters most. Failure never surfaces as an error:
// the caller always gets either live data, last-known-good cached data,
// or the offline sentinel.
type NetworkFirst struct {
	partition *cache.Partition
	fetch     Fetcher
}

// NewNetworkFirst creates the network-first strategy over the given
// partition and fetcher.
func NewNetworkFirst(partition *cache.Partition, fetch Fetcher) *NetworkFirst {
	return &NetworkFirst{partition: partition, fetch: fetch}
}

// Name returns the strategy identifier.
func (s *NetworkFirst) Name() string { return NameNetworkFirst }

// Execute fetches from the network; on success it stores a copy and
// returns the live response. On failure it falls back to cache, then to
// the 503 offline sentinel.
func (s *NetworkFirst) Execute(ctx context.Context, req *http.Request) (*cache.Snapshot, error) {
	key := cache.NewKey(req)

	resp, err := s.fetch.Do(ctx, req)
	if err == nil {
		snap, rerr := snapshotResponse(resp)
		if rerr == nil {
			if snap.Cacheable() {
				if perr := s.partition.Put(ctx, key, snap); perr != nil {
					slog.Warn("failed to store api response", "key", key, "error", perr)
				}
			}
			return snap, nil
		}
		// A body that dies mid-read is an offline condition like any other.
		err = rerr
	}

	cached, cerr := s.partition.Get(ctx, key)
	if cerr != nil {
		slog.Warn("cache read failed during offline fallback", "key", key, "error", cerr)
	}
	if cached != nil {
		cacheHits.WithLabelValues(s.Name(), s.partition.Name()).Inc()
		slog.Debug("network failed, served from cache", "key", key, "error", err)
		return cached, nil
	}

	offlineFallbacks.WithLabelValues(s.Name()).Inc()
	slog.Debug("network failed with no cached entry", "key", key, "error", err)
	return Offline(), nil
}
