// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver loads named resources from an ordered list of
// roots.
//
// A [Resolver] is built from a [Config]: the roots in priority order
// plus the acceleration layers to use. [Resolver.Resolve] asks each
// root's indexer in order and returns the first match as a [Resource]
// whose bytes are read only when [Resource.Bytes] is called. A name no
// root contains falls through to the optional parent [Fallback] and
// then to the optional bootstrap filesystem; if nothing claims it the
// result is (nil, false, nil). Not found is never an error.
//
// # Acceleration
//
// With UseCache, each root is enumerated once per generation and
// lookups become map probes (see package indexer). With a CachePool,
// resolvers whose root lists are identical share those indexers. With
// UsePersistentIndex, indexers start from snapshots saved by earlier
// processes when the root has not changed since. Each layer is
// optional and they compose.
//
// # Commitment
//
// Once a root claims a name the resolution is final. If reading the
// bytes then fails, Bytes returns a [*ResourceReadError] and no other
// root is tried: priority already chose that root, and silently
// serving a lower-priority copy would make results depend on transient
// I/O errors.
//
// # Names
//
// Names are slash-separated paths relative to a root. A single leading
// slash is removed. By default names must not contain whitespace,
// control characters or any of % \ # ?, which would indicate an
// escaped or URL-shaped name reaching the resolver by mistake;
// AllowUnescapedNames lifts that restriction. Names must always be
// valid [io/fs] paths.
//
// # Bootstrap
//
// When AllowBootstrapResources is set, names no root or parent claims
// are looked up in Config.Bootstrap. A root configured with
// ExcludeFromBootstrap owns every directory it contains: a name whose
// directory exists in such a root is never served from bootstrap, so a
// partially shadowed package cannot mix versions.
package resolver
