package strategy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"offgate/internal/cache"
)

// DefaultRevalidateTimeout bounds the background refresh fetch.
const DefaultRevalidateTimeout = 10 * time.Second

// StaleWhileRevalidate returns cached data immediately and refreshes the
// cache in the background for future requests. Used for bundled assets,
// where update latency is tolerable but response speed matters: a cache
// hit never waits on the network.
type StaleWhileRevalidate struct {
	partition *cache.Partition
	fetch     Fetcher
	timeout   time.Duration
}

// NewStaleWhileRevalidate creates the stale-while-revalidate strategy.
// A non-positive timeout falls back to DefaultRevalidateTimeout.
func NewStaleWhileRevalidate(partition *cache.Partition, fetch Fetcher, timeout time.Duration) *StaleWhileRevalidate {
	if timeout <= 0 {
		timeout = DefaultRevalidateTimeout
	}
	return &StaleWhileRevalidate{partition: partition, fetch: fetch, timeout: timeout}
}

// Name returns the strategy identifier.
func (s *StaleWhileRevalidate) Name() string { return NameStaleWhileRevalidate }

// Execute returns the cached entry immediately when present, refreshing
// the partition in the background. On a miss it awaits the network; if
// that fails too, one final fresh fetch attempt is made and its outcome,
// error included, is the caller's.
func (s *StaleWhileRevalidate) Execute(ctx context.Context, req *http.Request) (*cache.Snapshot, error) {
	key := cache.NewKey(req)

	cached, err := s.partition.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed, falling through to network", "key", key, "error", err)
	}
	if cached != nil {
		cacheHits.WithLabelValues(s.Name(), s.partition.Name()).Inc()
		go s.revalidate(ctx, req, key)
		return cached, nil
	}

	cacheMisses.WithLabelValues(s.Name(), s.partition.Name()).Inc()

	resp, err := s.fetch.Do(ctx, req)
	if err == nil {
		snap, rerr := snapshotResponse(resp)
		if rerr == nil {
			if snap.Cacheable() {
				if perr := s.partition.Put(ctx, key, snap); perr != nil {
					slog.Warn("failed to store asset response", "key", key, "error", perr)
				}
			}
			return snap, nil
		}
		err = rerr
	}

	// Miss and the fetch failed: one last uncached attempt, result and
	// error alike belong to the caller.
	slog.Debug("asset fetch failed, retrying uncached", "key", key, "error", err)
	resp, err = s.fetch.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return snapshotResponse(resp)
}

// revalidate refreshes the cache entry for future requests. It runs
// detached from the triggering request's lifetime, bounded by the
// configured timeout. Failures are swallowed: the cache simply keeps
// the previous entry.
func (s *StaleWhileRevalidate) revalidate(parent context.Context, req *http.Request, key cache.Key) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	resp, err := s.fetch.Do(ctx, req)
	if err != nil {
		revalidations.WithLabelValues("error").Inc()
		slog.Debug("background revalidation failed", "key", key, "error", err)
		return
	}

	snap, err := snapshotResponse(resp)
	if err != nil {
		revalidations.WithLabelValues("error").Inc()
		slog.Debug("background revalidation read failed", "key", key, "error", err)
		return
	}

	if !snap.Cacheable() {
		revalidations.WithLabelValues("skipped").Inc()
		return
	}

	if err := s.partition.Put(ctx, key, snap); err != nil {
		revalidations.WithLabelValues("error").Inc()
		slog.Warn("failed to store revalidated asset", "key", key, "error", err)
		return
	}
	revalidations.WithLabelValues("updated").Inc()
}
