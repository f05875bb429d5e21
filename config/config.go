// Package config provides configuration management for the gateway.
// All settings come from environment variables (optionally via a .env
// file); the install-time pre-cache asset list can additionally be
// supplied as a YAML manifest.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	Routing   RoutingConfig
	Lifecycle LifecycleConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	// Format is "text" (colorized console) or "json"
	Format string
	// Level is debug, info, warn or error
	Level string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string

	// ControlToken guards the lifecycle control endpoint. Empty means
	// the endpoint accepts unauthenticated messages.
	ControlToken string
}

// UpstreamConfig holds the origin all intercepted traffic is proxied to
type UpstreamConfig struct {
	URL string
}

// CacheConfig holds cache store configuration
type CacheConfig struct {
	// Backend selects the store: memory, sqlite, redis or postgres
	Backend string

	// Version suffixes every partition name; bumping it retires the
	// previous version's partitions at the next activation
	Version string

	SQLitePath       string
	RedisURL         string
	PostgresURL      string
	PostgresMaxConns int
}

// RoutingConfig holds the request classification rules
type RoutingConfig struct {
	APIPrefix       string
	AssetPrefixes   []string
	AssetExtensions []string
}

// LifecycleConfig holds install/activate behavior
type LifecycleConfig struct {
	// PrecachePaths are the shell assets stored during install
	PrecachePaths []string

	// ManifestPath optionally points at a YAML pre-cache manifest that
	// replaces PrecachePaths and may extend the asset prefixes
	ManifestPath string

	// HoldForSignal keeps the worker installed-but-inactive until a
	// skip-waiting control message arrives
	HoldForSignal bool

	// RevalidateTimeout bounds background asset revalidation fetches
	RevalidateTimeout time.Duration
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from the environment and the optional
// pre-cache manifest.
func Load() (*Config, error) {
	// Load .env if present (optional, won't fail if not found)
	_ = godotenv.Load()

	// Set defaults
	viper.SetDefault("OFFGATE_PORT", "8080")
	viper.SetDefault("OFFGATE_CACHE_BACKEND", "memory")
	viper.SetDefault("OFFGATE_CACHE_VERSION", "v1")
	viper.SetDefault("OFFGATE_SQLITE_PATH", "data/offgate.db")
	viper.SetDefault("OFFGATE_POSTGRES_MAX_CONNS", 10)
	viper.SetDefault("OFFGATE_API_PREFIX", "/api/")
	viper.SetDefault("OFFGATE_REVALIDATE_TIMEOUT", "10s")
	viper.SetDefault("OFFGATE_METRICS_ENABLED", true)
	viper.SetDefault("OFFGATE_METRICS_ENDPOINT", "/-/metrics")
	viper.SetDefault("OFFGATE_LOG_FORMAT", "text")
	viper.SetDefault("OFFGATE_LOG_LEVEL", "info")

	// Enable automatic environment variable reading
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("OFFGATE_PORT"),
			ControlToken: viper.GetString("OFFGATE_CONTROL_TOKEN"),
		},
		Upstream: UpstreamConfig{
			URL: viper.GetString("OFFGATE_UPSTREAM_URL"),
		},
		Cache: CacheConfig{
			Backend:          viper.GetString("OFFGATE_CACHE_BACKEND"),
			Version:          viper.GetString("OFFGATE_CACHE_VERSION"),
			SQLitePath:       viper.GetString("OFFGATE_SQLITE_PATH"),
			RedisURL:         viper.GetString("OFFGATE_REDIS_URL"),
			PostgresURL:      viper.GetString("OFFGATE_POSTGRES_URL"),
			PostgresMaxConns: viper.GetInt("OFFGATE_POSTGRES_MAX_CONNS"),
		},
		Routing: RoutingConfig{
			APIPrefix:       viper.GetString("OFFGATE_API_PREFIX"),
			AssetPrefixes:   splitList(viper.GetString("OFFGATE_ASSET_PREFIXES")),
			AssetExtensions: splitList(viper.GetString("OFFGATE_ASSET_EXTENSIONS")),
		},
		Lifecycle: LifecycleConfig{
			PrecachePaths:     splitList(viper.GetString("OFFGATE_PRECACHE_PATHS")),
			ManifestPath:      viper.GetString("OFFGATE_PRECACHE_MANIFEST"),
			HoldForSignal:     viper.GetBool("OFFGATE_HOLD_FOR_SIGNAL"),
			RevalidateTimeout: viper.GetDuration("OFFGATE_REVALIDATE_TIMEOUT"),
		},
		Metrics: MetricsConfig{
			Enabled:  viper.GetBool("OFFGATE_METRICS_ENABLED"),
			Endpoint: viper.GetString("OFFGATE_METRICS_ENDPOINT"),
		},
		Logging: LoggingConfig{
			Format: viper.GetString("OFFGATE_LOG_FORMAT"),
			Level:  viper.GetString("OFFGATE_LOG_LEVEL"),
		},
	}

	if cfg.Upstream.URL == "" {
		return nil, fmt.Errorf("OFFGATE_UPSTREAM_URL is required")
	}

	if cfg.Lifecycle.ManifestPath != "" {
		manifest, err := LoadManifest(cfg.Lifecycle.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load pre-cache manifest: %w", err)
		}
		if len(manifest.Assets) > 0 {
			cfg.Lifecycle.PrecachePaths = manifest.Assets
		}
		cfg.Routing.AssetPrefixes = append(cfg.Routing.AssetPrefixes, manifest.AssetPrefixes...)
	}

	return cfg, nil
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
