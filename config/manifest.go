package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML pre-cache manifest. It lists the shell assets
// stored at install time and, optionally, extra path prefixes to treat
// as bundled assets.
//
//	assets:
//	  - /
//	  - /manifest.json
//	  - /JK_Logo.jpg
//	asset_prefixes:
//	  - /_next/static/
type Manifest struct {
	Assets        []string `yaml:"assets"`
	AssetPrefixes []string `yaml:"asset_prefixes,omitempty"`
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
