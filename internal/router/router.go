// Package router classifies intercepted requests and selects the fetch
// strategy that will handle them. Classification is a state-free
// dispatch over method, URL path and resource type; every GET maps to
// exactly one class, deterministically.
package router

import (
	"net/http"
	"path"
	"strings"
)

// Class is the routing outcome for a request.
type Class int

const (
	// ClassPassthrough bypasses the cache entirely (non-GET requests).
	ClassPassthrough Class = iota
	// ClassAPI routes to network-first against the api partition.
	ClassAPI
	// ClassAsset routes to stale-while-revalidate against the assets partition.
	ClassAsset
	// ClassShell is the catch-all: cache-first against the core partition.
	ClassShell
)

// String returns the class name for logs and metrics.
func (c Class) String() string {
	switch c {
	case ClassPassthrough:
		return "passthrough"
	case ClassAPI:
		return "api"
	case ClassAsset:
		return "asset"
	default:
		return "shell"
	}
}

// Config holds the routing rules.
type Config struct {
	// APIPrefix marks dynamic API paths (default: /api/)
	APIPrefix string

	// AssetPrefixes are path prefixes of bundled framework assets
	// (default: /_next/static/, /static/)
	AssetPrefixes []string

	// AssetExtensions are file extensions classified as static assets
	AssetExtensions []string
}

// DefaultConfig returns routing rules matching a typical bundler layout.
func DefaultConfig() Config {
	return Config{
		APIPrefix:     "/api/",
		AssetPrefixes: []string{"/_next/static/", "/static/"},
		AssetExtensions: []string{
			".js", ".mjs", ".css", ".map",
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".ico",
			".woff", ".woff2", ".ttf", ".otf",
		},
	}
}

// fetchDests are Sec-Fetch-Dest values classified as static assets.
var fetchDests = map[string]bool{
	"image":  true,
	"style":  true,
	"script": true,
	"font":   true,
}

// Router classifies requests. Safe for concurrent use; it holds no
// mutable state.
type Router struct {
	apiPrefix     string
	assetPrefixes []string
	assetExts     map[string]bool
}

// New creates a Router from the config, filling empty fields with
// defaults.
func New(cfg Config) *Router {
	def := DefaultConfig()
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = def.APIPrefix
	}
	if len(cfg.AssetPrefixes) == 0 {
		cfg.AssetPrefixes = def.AssetPrefixes
	}
	if len(cfg.AssetExtensions) == 0 {
		cfg.AssetExtensions = def.AssetExtensions
	}

	exts := make(map[string]bool, len(cfg.AssetExtensions))
	for _, ext := range cfg.AssetExtensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Router{
		apiPrefix:     cfg.APIPrefix,
		assetPrefixes: cfg.AssetPrefixes,
		assetExts:     exts,
	}
}

// Classify selects the handling class for a request. Rules, in
// precedence order: non-GET passes through; API-prefixed paths are API;
// images, styles, scripts and bundled assets are assets; everything
// else, navigations included, falls through to shell.
func (r *Router) Classify(req *http.Request) Class {
	if req.Method != http.MethodGet {
		return ClassPassthrough
	}
	if req.Header.Get("Upgrade") != "" {
		// Connection upgrades (websockets) are never cacheable.
		return ClassPassthrough
	}

	p := req.URL.Path
	if strings.HasPrefix(p, r.apiPrefix) {
		return ClassAPI
	}

	if r.isAsset(req, p) {
		return ClassAsset
	}

	return ClassShell
}

func (r *Router) isAsset(req *http.Request, p string) bool {
	if fetchDests[req.Header.Get("Sec-Fetch-Dest")] {
		return true
	}
	for _, prefix := range r.assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return r.assetExts[strings.ToLower(path.Ext(p))]
}
