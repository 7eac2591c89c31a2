// Package config loads the optional Kiln runtime configuration file.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration (~/.config/kiln/config.yaml).
type Config struct {
	// Engine selects the compute engine: "native" (default) or "webgpu".
	Engine string `yaml:"engine"`

	// CacheCapacity bounds the per-context executor cache. 0 disables
	// eviction.
	CacheCapacity int `yaml:"cache_capacity"`

	// Verbosity is the klog -v level applied by the CLI.
	Verbosity int `yaml:"verbosity"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine:        "native",
		CacheCapacity: 512,
	}
}

// Path returns the default config file location, or "" when the user config
// directory cannot be determined.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kiln", "config.yaml")
}

// Load reads the config file at path, filling unset fields with defaults.
// A missing file is not an error; it yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.Engine == "" {
		cfg.Engine = "native"
	}
	if cfg.CacheCapacity < 0 {
		cfg.CacheCapacity = 0
	}
	return cfg, nil
}
