// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable Load reads.
const EnvConfig = "ROOTSET_CONFIG"

// Persistent index backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the rootset configuration.
type Config struct {
	// Roots in priority order.
	Roots []RootConfig `yaml:"roots" json:"roots"`

	// CacheDir is the base directory for persisted state.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LockRootsOpen keeps archive roots open for the resolver's
	// lifetime.
	LockRootsOpen bool `yaml:"lock_roots_open" json:"lock_roots_open"`

	// UseCache memoizes lookups per root.
	UseCache bool `yaml:"use_cache" json:"use_cache"`

	// UseCachePool shares indexes between resolvers with the same
	// roots. Only meaningful for long-running embedders; the CLI
	// builds one resolver per run.
	UseCachePool bool `yaml:"use_cache_pool" json:"use_cache_pool"`

	// UncachedRoots lists location prefixes for which caching is
	// forbidden, such as build output directories.
	UncachedRoots []string `yaml:"uncached_roots" json:"uncached_roots"`

	// PersistentIndex configures the on-disk index.
	PersistentIndex PersistentIndexConfig `yaml:"persistent_index" json:"persistent_index"`

	// AllowUnescapedNames accepts names with whitespace or escape
	// characters.
	AllowUnescapedNames bool `yaml:"allow_unescaped_names" json:"allow_unescaped_names"`

	// Preload enumerates every root at startup.
	Preload bool `yaml:"preload" json:"preload"`

	// Bootstrap is a directory or archive consulted after every root
	// when set.
	Bootstrap string `yaml:"bootstrap" json:"bootstrap"`

	// NegativeCacheSize bounds remembered misses; 0 uses the resolver
	// default, negative disables.
	NegativeCacheSize int `yaml:"negative_cache_size" json:"negative_cache_size"`

	// RevalidateInterval is a Go duration string. Empty or "0"
	// disables periodic revalidation.
	RevalidateInterval string `yaml:"revalidate_interval" json:"revalidate_interval"`
}

// RootConfig is one configured root.
type RootConfig struct {
	Location             string `yaml:"location" json:"location"`
	ExcludeFromBootstrap bool   `yaml:"exclude_from_bootstrap" json:"exclude_from_bootstrap"`
}

// PersistentIndexConfig configures the on-disk index.
type PersistentIndexConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Backend is "file" (one file per root under Path) or "sqlite"
	// (one database at Path).
	Backend string `yaml:"backend" json:"backend"`

	Path string `yaml:"path" json:"path"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		CacheDir: "${HOME}/.cache/rootset",
		UseCache: true,
		PersistentIndex: PersistentIndexConfig{
			Enabled: true,
			Backend: BackendFile,
			Path:    "${ROOTSET_CACHE}/index",
		},
	}
}

// Load loads the file named by ROOTSET_CONFIG. It fails if the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your rootset config file, or use --config", EnvConfig)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of Default and
// expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.Expand()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// Expand expands ${VAR} and ${VAR:-default} in every path field.
// LoadFile calls it; callers that build a Config by hand or change
// paths after loading call it themselves.
func (c *Config) Expand() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.CacheDir = expandVars(c.CacheDir, vars)
	vars["ROOTSET_CACHE"] = c.CacheDir

	for i := range c.Roots {
		c.Roots[i].Location = expandVars(c.Roots[i].Location, vars)
	}
	for i := range c.UncachedRoots {
		c.UncachedRoots[i] = expandVars(c.UncachedRoots[i], vars)
	}
	c.PersistentIndex.Path = expandVars(c.PersistentIndex.Path, vars)
	c.Bootstrap = expandVars(c.Bootstrap, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars consults vars first, then the environment, then the
// inline default.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Revalidate parses RevalidateInterval.
func (c *Config) Revalidate() (time.Duration, error) {
	if c.RevalidateInterval == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(c.RevalidateInterval)
	if err != nil {
		return 0, fmt.Errorf("revalidate_interval: %w", err)
	}
	if interval < 0 {
		return 0, fmt.Errorf("revalidate_interval must not be negative, got %s", interval)
	}
	return interval, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	for i, r := range c.Roots {
		if r.Location == "" {
			errs = append(errs, fmt.Errorf("roots[%d].location is required", i))
		}
	}

	if c.PersistentIndex.Enabled {
		if !c.UseCache {
			errs = append(errs, errors.New("persistent_index.enabled requires use_cache"))
		}
		backends := []string{BackendFile, BackendSQLite}
		if !slices.Contains(backends, c.PersistentIndex.Backend) {
			errs = append(errs, fmt.Errorf("persistent_index.backend must be one of: %v", backends))
		}
		if c.PersistentIndex.Path == "" {
			errs = append(errs, errors.New("persistent_index.path is required when enabled"))
		}
	}

	if c.UseCachePool && !c.UseCache {
		errs = append(errs, errors.New("use_cache_pool requires use_cache"))
	}

	if _, err := c.Revalidate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// IsUncached reports whether location falls under one of the
// UncachedRoots prefixes. Prefixes match whole path components.
func (c *Config) IsUncached(location string) bool {
	location = filepath.Clean(location)
	for _, prefix := range c.UncachedRoots {
		prefix = filepath.Clean(prefix)
		if location == prefix || strings.HasPrefix(location, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// EnsureCacheDir creates the cache directory.
func (c *Config) EnsureCacheDir() error {
	if c.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", c.CacheDir, err)
	}
	return nil
}
