// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the rootset configuration file.
//
// Configuration comes from a single file named by either the
// ROOTSET_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path; a
// command run without either uses [Default] plus its flags.
//
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas; anything else is YAML. Both spellings use the same
// snake_case keys.
//
// Path fields (root locations, the cache directory, the persistent
// index path and the bootstrap location) have ${VAR} and
// ${VAR:-default} expanded after loading. ${ROOTSET_CACHE} refers to
// the configured cache_dir so the index path can be written relative
// to it. No environment variable overrides a configured value.
//
// Key exports:
//
//   - [Config] -- roots plus resolver, cache and index settings
//   - [Default] -- caching on, file-backed persistent index
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
//
// This package depends on no other rootset packages.
package config
