package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("RequiresUpstreamURL", func(t *testing.T) {
		t.Setenv("OFFGATE_UPSTREAM_URL", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OFFGATE_UPSTREAM_URL")
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("OFFGATE_UPSTREAM_URL", "http://localhost:3000")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "http://localhost:3000", cfg.Upstream.URL)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, "v1", cfg.Cache.Version)
		assert.Equal(t, "/api/", cfg.Routing.APIPrefix)
		assert.Equal(t, 10*time.Second, cfg.Lifecycle.RevalidateTimeout)
		assert.False(t, cfg.Lifecycle.HoldForSignal)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, "/-/metrics", cfg.Metrics.Endpoint)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("OFFGATE_UPSTREAM_URL", "https://shop.example.com")
		t.Setenv("OFFGATE_PORT", "9090")
		t.Setenv("OFFGATE_CACHE_BACKEND", "sqlite")
		t.Setenv("OFFGATE_CACHE_VERSION", "v7")
		t.Setenv("OFFGATE_HOLD_FOR_SIGNAL", "true")
		t.Setenv("OFFGATE_REVALIDATE_TIMEOUT", "30s")
		t.Setenv("OFFGATE_PRECACHE_PATHS", "/, /offline.html")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Cache.Backend)
		assert.Equal(t, "v7", cfg.Cache.Version)
		assert.True(t, cfg.Lifecycle.HoldForSignal)
		assert.Equal(t, 30*time.Second, cfg.Lifecycle.RevalidateTimeout)
		assert.Equal(t, []string{"/", "/offline.html"}, cfg.Lifecycle.PrecachePaths)
	})

	t.Run("ManifestReplacesPrecachePaths", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "precache.yaml")
		manifest := []byte("assets:\n  - /\n  - /manifest.json\nasset_prefixes:\n  - /cdn/\n")
		require.NoError(t, os.WriteFile(path, manifest, 0o644))

		t.Setenv("OFFGATE_UPSTREAM_URL", "http://localhost:3000")
		t.Setenv("OFFGATE_PRECACHE_MANIFEST", path)
		t.Setenv("OFFGATE_PRECACHE_PATHS", "/ignored")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"/", "/manifest.json"}, cfg.Lifecycle.PrecachePaths)
		assert.Contains(t, cfg.Routing.AssetPrefixes, "/cdn/")
	})

	t.Run("MissingManifestFails", func(t *testing.T) {
		t.Setenv("OFFGATE_UPSTREAM_URL", "http://localhost:3000")
		t.Setenv("OFFGATE_PRECACHE_MANIFEST", "/does/not/exist.yaml")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoadManifest(t *testing.T) {
	t.Run("ParsesAssets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "precache.yaml")
		require.NoError(t, os.WriteFile(path, []byte("assets:\n  - /\n  - /JK_Logo.jpg\n"), 0o644))

		m, err := LoadManifest(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/JK_Logo.jpg"}, m.Assets)
		assert.Empty(t, m.AssetPrefixes)
	})

	t.Run("RejectsInvalidYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "precache.yaml")
		require.NoError(t, os.WriteFile(path, []byte("assets: [unclosed"), 0o644))

		_, err := LoadManifest(path)
		require.Error(t, err)
	})
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"Empty", "", nil},
		{"Single", "/api/", []string{"/api/"}},
		{"Multiple", "/a/,/b/", []string{"/a/", "/b/"}},
		{"TrimsWhitespace", " /a/ , /b/ ", []string{"/a/", "/b/"}},
		{"SkipsEmptyEntries", "/a/,,/b/,", []string{"/a/", "/b/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.raw))
		})
	}
}
