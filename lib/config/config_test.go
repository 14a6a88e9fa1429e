// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.UseCache {
		t.Error("expected use_cache=true")
	}
	if !cfg.PersistentIndex.Enabled || cfg.PersistentIndex.Backend != BackendFile {
		t.Errorf("expected file-backed persistent index, got %+v", cfg.PersistentIndex)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresRootsetConfig(t *testing.T) {
	t.Setenv(EnvConfig, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when ROOTSET_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "ROOTSET_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithRootsetConfig(t *testing.T) {
	path := writeConfig(t, "rootset.yaml", `
roots:
  - location: /work/classes
  - location: /work/lib.jar
    exclude_from_bootstrap: true
`)
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(cfg.Roots))
	}
	if cfg.Roots[1].Location != "/work/lib.jar" || !cfg.Roots[1].ExcludeFromBootstrap {
		t.Errorf("unexpected second root %+v", cfg.Roots[1])
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, "rootset.yaml", `
roots:
  - location: /work/out
cache_dir: /var/cache/rootset
lock_roots_open: true
use_cache: true
use_cache_pool: true
uncached_roots:
  - /work/out
persistent_index:
  enabled: true
  backend: sqlite
  path: ${ROOTSET_CACHE}/index.db
allow_unescaped_names: true
preload: true
bootstrap: /opt/jdk/lib/classes.jar
negative_cache_size: 128
revalidate_interval: 30s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if !cfg.LockRootsOpen || !cfg.UseCachePool || !cfg.AllowUnescapedNames || !cfg.Preload {
		t.Errorf("boolean options not loaded: %+v", cfg)
	}
	if cfg.PersistentIndex.Backend != BackendSQLite {
		t.Errorf("expected backend=sqlite, got %s", cfg.PersistentIndex.Backend)
	}
	if cfg.PersistentIndex.Path != "/var/cache/rootset/index.db" {
		t.Errorf("expected index path under cache_dir, got %s", cfg.PersistentIndex.Path)
	}
	if cfg.Bootstrap != "/opt/jdk/lib/classes.jar" {
		t.Errorf("unexpected bootstrap %s", cfg.Bootstrap)
	}
	if cfg.NegativeCacheSize != 128 {
		t.Errorf("expected negative_cache_size=128, got %d", cfg.NegativeCacheSize)
	}
	interval, err := cfg.Revalidate()
	if err != nil || interval != 30*time.Second {
		t.Errorf("Revalidate() = %v, %v, want 30s", interval, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	path := writeConfig(t, "rootset.jsonc", `{
	// Build output first so fresh classes shadow the jar.
	"roots": [
		{"location": "/work/out"},
		{"location": "/work/lib.jar"}, // trailing comma is fine
	],
	"use_cache": false,
	"persistent_index": {"enabled": false},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(cfg.Roots) != 2 || cfg.Roots[0].Location != "/work/out" {
		t.Errorf("unexpected roots %+v", cfg.Roots)
	}
	if cfg.UseCache {
		t.Error("expected use_cache=false")
	}
	// Unset keys keep their defaults.
	if cfg.PersistentIndex.Backend != BackendFile {
		t.Errorf("expected default backend, got %s", cfg.PersistentIndex.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := LoadFile(writeConfig(t, "bad.yaml", "roots: [unterminated")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := LoadFile(writeConfig(t, "bad.json", `{"roots": `)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("ROOTSET_CACHE", "/from/environment")
	path := writeConfig(t, "rootset.yaml", `
cache_dir: /from/file
persistent_index:
  path: ${ROOTSET_CACHE}/index
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.PersistentIndex.Path != "/from/file/index" {
		t.Errorf("expected configured cache_dir to win, got %s", cfg.PersistentIndex.Path)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("ROOTSET_TEST_VAR", "from-env")
	vars := map[string]string{"HOME": "/home/test"}

	tests := []struct {
		input string
		want  string
	}{
		{"${HOME}/classes", "/home/test/classes"},
		{"${ROOTSET_TEST_VAR}/x", "from-env/x"},
		{"${ROOTSET_UNSET_VAR:-fallback}/x", "fallback/x"},
		{"${ROOTSET_UNSET_VAR}/x", "/x"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty root", func(c *Config) { c.Roots = []RootConfig{{}} }, "roots[0].location"},
		{"bad backend", func(c *Config) { c.PersistentIndex.Backend = "redis" }, "persistent_index.backend"},
		{"no index path", func(c *Config) { c.PersistentIndex.Path = "" }, "persistent_index.path"},
		{"index without cache", func(c *Config) { c.UseCache = false }, "requires use_cache"},
		{"pool without cache", func(c *Config) {
			c.UseCache = false
			c.PersistentIndex.Enabled = false
			c.UseCachePool = true
		}, "use_cache_pool"},
		{"bad interval", func(c *Config) { c.RevalidateInterval = "soon" }, "revalidate_interval"},
		{"negative interval", func(c *Config) { c.RevalidateInterval = "-5s" }, "must not be negative"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Expand()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), test.wantErr)
			}
		})
	}

	// Every problem is reported at once.
	cfg := Default()
	cfg.Roots = []RootConfig{{}, {}}
	cfg.PersistentIndex.Backend = "redis"
	err := cfg.Validate()
	if err == nil || strings.Count(err.Error(), "\n") < 2 {
		t.Errorf("expected three joined errors, got %v", err)
	}
}

func TestIsUncached(t *testing.T) {
	cfg := &Config{UncachedRoots: []string{"/work/out", "/tmp/gen/"}}

	tests := []struct {
		location string
		want     bool
	}{
		{"/work/out", true},
		{"/work/out/classes", true},
		{"/work/output", false},
		{"/tmp/gen/x.jar", true},
		{"/work/lib.jar", false},
	}
	for _, test := range tests {
		if got := cfg.IsUncached(test.location); got != test.want {
			t.Errorf("IsUncached(%s) = %v, want %v", test.location, got, test.want)
		}
	}
}

func TestEnsureCacheDir(t *testing.T) {
	cfg := &Config{CacheDir: filepath.Join(t.TempDir(), "a", "b")}
	if err := cfg.EnsureCacheDir(); err != nil {
		t.Fatalf("EnsureCacheDir() failed: %v", err)
	}
	if info, err := os.Stat(cfg.CacheDir); err != nil || !info.IsDir() {
		t.Errorf("cache dir not created: %v", err)
	}
}
