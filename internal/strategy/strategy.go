// Package strategy implements the gateway's fetch strategies: the fixed
// policies governing cache/network consultation order for each class of
// intercepted request.
package strategy

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"offgate/internal/cache"
)

// Strategy name constants, used for routing, logs and metric labels.
const (
	NameNetworkFirst         = "network-first"
	NameCacheFirst           = "cache-first"
	NameStaleWhileRevalidate = "stale-while-revalidate"
)

// Fetcher performs the actual network fetch for an intercepted request.
// Implementations must honor ctx for cancellation and derive the
// outbound request from it, so callers can hand a strategy a detached
// context for background work.
type Fetcher interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Strategy resolves an intercepted request into a response snapshot.
// Implementations are pure policies over one cache partition and a
// fetcher; they hold no per-request state.
type Strategy interface {
	// Name returns the strategy's fixed identifier.
	Name() string

	// Execute runs the strategy for the request. Whether a network
	// failure is recovered (cached data, offline sentinel) or surfaced
	// as an error is part of each strategy's contract.
	Execute(ctx context.Context, req *http.Request) (*cache.Snapshot, error)
}

// Offline is the synthetic degradation response: HTTP 503 with a
// plain-text "Offline" body and no custom headers. Calling pages detect
// this exact shape to render an offline indicator.
func Offline() *cache.Snapshot {
	return &cache.Snapshot{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{},
		Body:   []byte("Offline"),
	}
}

// Prometheus metrics shared by all strategies.
var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offgate_cache_hits_total",
			Help: "Total number of intercepted requests served from cache",
		},
		[]string{"strategy", "partition"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offgate_cache_misses_total",
			Help: "Total number of intercepted requests not found in cache",
		},
		[]string{"strategy", "partition"},
	)

	offlineFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offgate_offline_fallbacks_total",
			Help: "Total number of requests resolved to the 503 offline sentinel",
		},
		[]string{"strategy"},
	)

	revalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offgate_revalidations_total",
			Help: "Total number of background cache revalidations by outcome",
		},
		[]string{"outcome"},
	)
)

// snapshotResponse drains resp into a snapshot and closes the body.
func snapshotResponse(resp *http.Response) (*cache.Snapshot, error) {
	defer resp.Body.Close()
	return cache.NewSnapshot(resp)
}
