// Package config loads the on-disk configuration for the mcproxyd daemon
// shell: buffer tuning knobs, listen address, and metrics namespace. It
// follows the same merge-with-defaults shape as mcproxy.ServerConfig, just
// sourced from a YAML file instead of a struct literal.
package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RouterConfig is the daemon's top-level configuration document.
type RouterConfig struct {
	ListenAddress string `yaml:"listen_address"`

	Buffer struct {
		MinSize          int    `yaml:"min_size"`
		MaxSize          int    `yaml:"max_size"`
		UseSecureAlloc   bool   `yaml:"use_secure_allocator"`
		AdjustInterval   uint64 `yaml:"adjust_interval"`
	} `yaml:"buffer"`

	Metrics struct {
		Namespace string `yaml:"namespace"`
		Subsystem string `yaml:"subsystem"`
		Address   string `yaml:"address"`
	} `yaml:"metrics"`

	// Generation is stamped on Load, not read from the file: it tags every
	// RouterConfig instance with an opaque, human-legible identifier so a
	// request's config_snapshot can be correlated with the reload that
	// produced it.
	Generation string `yaml:"-"`
}

func defaultConfig() RouterConfig {
	var c RouterConfig

	c.ListenAddress = ":11311"
	c.Buffer.MinSize = 4096
	c.Buffer.MaxSize = 1 << 20
	c.Buffer.AdjustInterval = 10_000
	c.Metrics.Namespace = "mcproxy"
	c.Metrics.Address = ":9090"

	return c
}

// Load reads and parses a RouterConfig from path, filling in defaults for
// anything the file omits, and stamping a fresh generation id.
func Load(path string) (*RouterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	c := defaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if c.ListenAddress == "" {
		c.ListenAddress = defaultConfig().ListenAddress
	}
	if c.Buffer.MinSize <= 0 {
		c.Buffer.MinSize = defaultConfig().Buffer.MinSize
	}
	if c.Buffer.MaxSize <= 0 {
		c.Buffer.MaxSize = defaultConfig().Buffer.MaxSize
	}
	if c.Buffer.AdjustInterval == 0 {
		c.Buffer.AdjustInterval = defaultConfig().Buffer.AdjustInterval
	}

	c.Generation = uuid.NewString()

	return &c, nil
}
