// Package upstream rewrites intercepted requests onto the configured
// origin and performs the actual network fetch.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// hopHeaders are connection-scoped headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher fetches intercepted requests from a single upstream origin.
// It imposes no timeout and performs no retries of its own; a failed
// fetch is the strategies' problem to resolve.
type Fetcher struct {
	base   *url.URL
	client *http.Client
}

// New creates a Fetcher for the origin base URL (scheme and host; any
// path on it is ignored).
func New(baseURL string, client *http.Client) (*Fetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream URL must include scheme and host, got %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{base: base, client: client}, nil
}

// Do rewrites req onto the upstream origin and executes it with ctx.
// Method, path, query, body and end-to-end headers are preserved.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	out := req.Clone(ctx)
	out.URL.Scheme = f.base.Scheme
	out.URL.Host = f.base.Host
	out.Host = f.base.Host
	out.RequestURI = "" // client requests must not set RequestURI

	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	return resp, nil
}

// Get builds and executes a plain GET for the given origin-relative
// path. Used by the install pre-warm, which has no inbound request to
// derive from.
func (f *Fetcher) Get(ctx context.Context, path string) (*http.Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base.Scheme+"://"+f.base.Host+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pre-warm request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	return resp, nil
}
