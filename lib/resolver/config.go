// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/bureau-foundation/rootset/lib/archive"
	"github.com/bureau-foundation/rootset/lib/cachepool"
	"github.com/bureau-foundation/rootset/lib/clock"
	"github.com/bureau-foundation/rootset/lib/indexer"
	"github.com/bureau-foundation/rootset/lib/persistindex"
)

// DefaultNegativeCacheSize bounds remembered misses when
// Config.NegativeCacheSize is zero.
const DefaultNegativeCacheSize = 4096

// RootSpec is one entry of Config.Roots.
type RootSpec struct {
	// Location is a directory or archive path. It need not exist yet.
	Location string

	// ExcludeFromBootstrap makes the root own the directories it
	// contains; names in them are never served from bootstrap.
	ExcludeFromBootstrap bool
}

// Fallback resolves names no root claimed. A Resolver is itself a
// Fallback, so resolvers chain.
type Fallback interface {
	Resolve(name string) (*Resource, bool, error)
}

// Config configures a Resolver. The zero value apart from Roots is a
// plain uncached resolver.
type Config struct {
	// Roots in priority order; the first root containing a name wins.
	Roots []RootSpec

	// Parent is consulted after every root.
	Parent Fallback

	// LockRootsOpen keeps archive handles open for the resolver's
	// lifetime instead of opening per access.
	LockRootsOpen bool

	// UseCache memoizes lookups per root, privately or through
	// CachePool.
	UseCache bool

	// CachePool shares index sets between resolvers with identical
	// roots, lock policy and bootstrap exclusion included. Requires
	// UseCache. The remaining cache options of the resolver that
	// creates a pool entry apply to every resolver sharing it.
	CachePool *cachepool.Pool

	// CachingCondition decides per root whether caching is allowed.
	// Nil allows it for every root.
	CachingCondition indexer.CachingCondition

	// UsePersistentIndex loads and saves snapshots through IndexStore.
	// Requires UseCache. Ignored when persistindex.DisableEnv is set.
	UsePersistentIndex bool
	IndexStore         persistindex.Store

	// AllowUnescapedNames accepts any valid fs path as a name.
	AllowUnescapedNames bool

	// Preload enumerates every cacheable root during New.
	Preload bool

	// PreloadConcurrency bounds parallel enumerations during preload.
	// Zero means GOMAXPROCS.
	PreloadConcurrency int

	// AllowBootstrapResources serves names nothing else claimed from
	// Bootstrap.
	AllowBootstrapResources bool
	Bootstrap               fs.FS

	// NegativeCacheSize bounds remembered misses. Zero means
	// DefaultNegativeCacheSize; negative disables the negative cache.
	NegativeCacheSize int

	// RevalidateInterval makes lookups re-probe a root's stamp once
	// the table is older than the interval. Zero disables it; call
	// Refresh or use a watcher instead.
	RevalidateInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger

	// Opener opens archive roots. Nil means archive.DefaultOpener.
	Opener archive.Opener
}

func (c *Config) validate() error {
	var errs []error
	if c.CachePool != nil && !c.UseCache {
		errs = append(errs, errors.New("CachePool requires UseCache"))
	}
	if c.UsePersistentIndex && !c.UseCache {
		errs = append(errs, errors.New("UsePersistentIndex requires UseCache"))
	}
	if c.UsePersistentIndex && c.IndexStore == nil {
		errs = append(errs, errors.New("UsePersistentIndex requires an IndexStore"))
	}
	if c.AllowBootstrapResources && c.Bootstrap == nil {
		errs = append(errs, errors.New("AllowBootstrapResources requires a Bootstrap filesystem"))
	}
	if c.PreloadConcurrency < 0 {
		errs = append(errs, errors.New("PreloadConcurrency must not be negative"))
	}
	for i, spec := range c.Roots {
		if spec.Location == "" {
			errs = append(errs, fmt.Errorf("root %d has an empty location", i))
		}
	}
	return errors.Join(errs...)
}
