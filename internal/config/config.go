// Package config defines the daemon's on-disk configuration shape and
// loads it. Kong's config-file resolver (wired in cmd/deskicond) lets
// flags of the same name override values loaded from here, the same
// "CLI flags win over file" precedence cmd/sand/main.go establishes
// with kong.Configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/banksean/deskicond/internal/sandbox"
)

// Config is the daemon's full configuration, loaded from YAML per
// SPEC_FULL.md §6.1's concrete shape.
type Config struct {
	WatchDir         string   `yaml:"watch_dir"`
	IconSize         uint32   `yaml:"icon_size"`
	Theme            string   `yaml:"theme"`
	Sandbox          Sandbox  `yaml:"sandbox"`
	ScriptSearchPath []string `yaml:"script_search_path"`
	LogFile          string   `yaml:"log_file"`
	LogLevel         string   `yaml:"log_level"`
	Verbose          bool     `yaml:"verbose"`
}

// Sandbox is the sandbox-isolation slice of Config, translated directly
// into sandbox.Options by ToSandboxOptions.
type Sandbox struct {
	AllowNetwork   bool     `yaml:"allow_network"`
	ReadOnlyPaths  []string `yaml:"read_only_paths"`
	ReadWritePaths []string `yaml:"read_write_paths"`
}

// Default returns the configuration a fresh install would run with.
func Default() Config {
	return Config{
		IconSize: 64,
		Theme:    "adwaita",
		LogLevel: "info",
	}
}

// Load reads and parses the YAML config file at path. Unrecognized keys
// are ignored per yaml.v3's default behavior (§6's "preserved or
// ignored, per host policy").
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ToSandboxOptions translates the configuration's sandbox slice into the
// Options BuildLaunchSpec consumes. A non-empty Theme is passed through
// opaquely to the child as the CVH_ICON_THEME environment variable.
func (c Config) ToSandboxOptions() sandbox.Options {
	opts := sandbox.Options{
		AllowNetwork:   c.Sandbox.AllowNetwork,
		ReadOnlyPaths:  c.Sandbox.ReadOnlyPaths,
		ReadWritePaths: c.Sandbox.ReadWritePaths,
	}
	if c.Theme != "" {
		opts.EnvVars = []sandbox.EnvVar{{Key: "CVH_ICON_THEME", Value: c.Theme}}
	}
	return opts
}
