// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/rootset/lib/cachepool"
	"github.com/bureau-foundation/rootset/lib/indexer"
	"github.com/bureau-foundation/rootset/lib/persistindex"
	"github.com/bureau-foundation/rootset/lib/root"
	"github.com/bureau-foundation/rootset/lib/watch"
)

// Resolver resolves names against an ordered list of roots. It is
// safe for concurrent use.
type Resolver struct {
	roots  []*root.Root
	set    *indexer.Set
	handle *cachepool.Handle

	parent          Fallback
	bootstrap       fs.FS
	allowBootstrap  bool
	allowUnescaped  bool
	bootstrapOwners []*indexer.Indexer
	logger          *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Stats describes a resolver's index state.
type Stats struct {
	Fingerprint root.Fingerprint
	Pooled      bool
	Set         indexer.SetStats
}

// New builds a resolver. Invalid roots and inconsistent options are
// reported here; nothing else in the resolver's lifetime is fatal.
func New(cfg Config) (*Resolver, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid resolver config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	policy := root.OpenPerAccess
	if cfg.LockRootsOpen {
		policy = root.HoldOpen
	}
	roots := make([]*root.Root, len(cfg.Roots))
	for i, spec := range cfg.Roots {
		r, err := root.New(i, spec.Location, root.Options{
			Policy:               policy,
			ExcludeFromBootstrap: spec.ExcludeFromBootstrap,
			Opener:               cfg.Opener,
		})
		if err != nil {
			return nil, err
		}
		roots[i] = r
	}

	setOptions := indexer.SetOptions{
		Condition:          cfg.CachingCondition,
		NegativeCacheSize:  cfg.NegativeCacheSize,
		RevalidateInterval: cfg.RevalidateInterval,
		Clock:              cfg.Clock,
		Logger:             logger,
	}
	if !cfg.UseCache {
		setOptions.Condition = indexer.NeverCache
	}
	if setOptions.NegativeCacheSize == 0 {
		setOptions.NegativeCacheSize = DefaultNegativeCacheSize
	}
	if cfg.UsePersistentIndex {
		if persistindex.DisabledByEnvironment() {
			logger.Info("persistent index disabled by environment", "variable", persistindex.DisableEnv)
		} else {
			setOptions.Store = cfg.IndexStore
		}
	}

	resolver := &Resolver{
		roots:          roots,
		parent:         cfg.Parent,
		bootstrap:      cfg.Bootstrap,
		allowBootstrap: cfg.AllowBootstrapResources,
		allowUnescaped: cfg.AllowUnescapedNames,
		logger:         logger,
	}

	factory := func(roots []*root.Root) (*indexer.Set, error) {
		return indexer.NewSet(roots, setOptions)
	}
	if cfg.CachePool != nil {
		handle, err := cfg.CachePool.Acquire(roots, factory)
		if err != nil {
			return nil, err
		}
		resolver.handle = handle
		resolver.set = handle.Set()
	} else {
		set, err := factory(roots)
		if err != nil {
			return nil, err
		}
		resolver.set = set
	}

	for _, x := range resolver.set.Indexers() {
		if x.Root().ExcludesBootstrap() {
			resolver.bootstrapOwners = append(resolver.bootstrapOwners, x)
		}
	}

	if cfg.Preload {
		resolver.preload(cfg.PreloadConcurrency)
	}

	logger.Debug("resolver created",
		"roots", len(roots),
		"fingerprint", resolver.set.Fingerprint().String(),
		"pooled", resolver.handle != nil,
		"cached", resolver.set.Cacheable(),
	)
	return resolver, nil
}

// preload enumerates every cacheable root with bounded parallelism.
func (r *Resolver) preload(concurrency int) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	var group errgroup.Group
	group.SetLimit(concurrency)
	for _, x := range r.set.Indexers() {
		if !x.Cached() {
			continue
		}
		group.Go(func() error {
			x.Prepare()
			return nil
		})
	}
	group.Wait()
}

// Roots returns the roots in priority order.
func (r *Resolver) Roots() []*root.Root { return r.roots }

// Resolve returns the resource for name from the first root containing
// it, then the parent, then bootstrap. A name nothing claims returns
// (nil, false, nil).
func (r *Resolver) Resolve(name string) (*Resource, bool, error) {
	if r.closed.Load() {
		return nil, false, ErrClosed
	}
	normalized, err := normalizeName(name, r.allowUnescaped)
	if err != nil {
		return nil, false, err
	}

	if x, found := r.set.Find(normalized); found {
		return rootResource(normalized, x.Storage()), true, nil
	}

	if r.parent != nil {
		resource, found, err := r.parent.Resolve(normalized)
		if err != nil {
			return nil, false, fmt.Errorf("parent resolving %s: %w", normalized, err)
		}
		if found {
			return resource, true, nil
		}
	}

	if resource, found := r.resolveBootstrap(normalized); found {
		return resource, true, nil
	}
	return nil, false, nil
}

// ResolveAll returns every resource named name: one per root that
// contains it in priority order, then the parent's, then bootstrap's.
func (r *Resolver) ResolveAll(name string) ([]*Resource, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	normalized, err := normalizeName(name, r.allowUnescaped)
	if err != nil {
		return nil, err
	}

	var resources []*Resource
	for _, x := range r.set.FindAll(normalized) {
		resources = append(resources, rootResource(normalized, x.Storage()))
	}

	if r.parent != nil {
		if all, ok := r.parent.(interface {
			ResolveAll(string) ([]*Resource, error)
		}); ok {
			parentResources, err := all.ResolveAll(normalized)
			if err != nil {
				return nil, fmt.Errorf("parent resolving %s: %w", normalized, err)
			}
			resources = append(resources, parentResources...)
		} else {
			resource, found, err := r.parent.Resolve(normalized)
			if err != nil {
				return nil, fmt.Errorf("parent resolving %s: %w", normalized, err)
			}
			if found {
				resources = append(resources, resource)
			}
		}
	}

	if resource, found := r.resolveBootstrap(normalized); found {
		resources = append(resources, resource)
	}
	return resources, nil
}

// ReadFile resolves name and reads its bytes. Not found is reported as
// an error wrapping fs.ErrNotExist; a read failure on the claiming root
// is a *ResourceReadError.
func (r *Resolver) ReadFile(name string) ([]byte, *Resource, error) {
	resource, found, err := r.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, &fs.PathError{Op: "resolve", Path: name, Err: fs.ErrNotExist}
	}
	content, err := resource.Bytes()
	if err != nil {
		return nil, resource, err
	}
	return content, resource, nil
}

// ListNames returns every name in the roots in priority order of first
// occurrence, without duplicates. Parent and bootstrap names are not
// included.
func (r *Resolver) ListNames() ([]string, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	return r.set.Names(), nil
}

func (r *Resolver) resolveBootstrap(name string) (*Resource, bool) {
	if !r.allowBootstrap || r.bootstrap == nil {
		return nil, false
	}
	if dir := path.Dir(name); dir != "." {
		for _, owner := range r.bootstrapOwners {
			if owner.HasDir(dir) {
				r.logger.Debug("bootstrap lookup suppressed by owning root",
					"name", name,
					"root", owner.Root().Identity(),
				)
				return nil, false
			}
		}
	}
	info, err := fs.Stat(r.bootstrap, name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("bootstrap lookup failed", "name", name, "error", err)
		}
		return nil, false
	}
	if info.IsDir() {
		return nil, false
	}
	return bootstrapResource(name, r.bootstrap), true
}

// Refresh makes every root re-probe its stamp on the next lookup.
func (r *Resolver) Refresh() {
	r.set.Invalidate()
}

// WatchRoots registers every directory root with w so that changes
// invalidate its indexer. Roots whose directory does not exist yet are
// skipped and logged.
func (r *Resolver) WatchRoots(w *watch.Watcher) error {
	var errs []error
	for _, x := range r.set.Indexers() {
		if x.Root().Kind() != root.KindDirectory || !x.Cached() {
			continue
		}
		if err := w.Watch(x.Root().Location(), x.Invalidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Info("not watching missing root", "root", x.Root().Identity())
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the index counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Fingerprint: r.set.Fingerprint(),
		Pooled:      r.handle != nil,
		Set:         r.set.Stats(),
	}
}

// Flush saves changed indexes to the persistent store.
func (r *Resolver) Flush() error {
	return r.set.Flush()
}

// Close flushes and releases the resolver's indexes: the pool handle
// if pooled, otherwise its private set. Close is idempotent.
func (r *Resolver) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		if r.handle != nil {
			r.closeErr = errors.Join(r.set.Flush(), r.handle.Release())
			return
		}
		r.closeErr = errors.Join(r.set.Flush(), r.set.Close())
	})
	return r.closeErr
}
