// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/rootset/lib/clock"
	"github.com/bureau-foundation/rootset/lib/persistindex"
	"github.com/bureau-foundation/rootset/lib/root"
)

// Options configures an Indexer.
type Options struct {
	// Cache permits memoization. When false every lookup goes to
	// storage.
	Cache bool

	// Store hydrates the table on first use and receives it on Flush.
	// Nil disables persistence.
	Store persistindex.Store

	// RevalidateInterval is how long a table is trusted before the
	// next query re-probes the root's stamp. Zero trusts it until
	// Invalidate.
	RevalidateInterval time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// EnumerationError reports a root that could not be walked. The
// indexer logs it and treats the root as empty until its stamp
// changes.
type EnumerationError struct {
	Root *root.Root
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerating %s: %v", e.Root, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// Stats are cumulative counters of one indexer.
type Stats struct {
	// Enumerations counts full walks of the root.
	Enumerations int64

	// Hydrations counts tables loaded from the persistent store.
	Hydrations int64

	// Probes counts lookups answered directly by storage because
	// caching is off for the root.
	Probes int64

	// StampChecks counts stamp probes (hydration checks and
	// revalidations).
	StampChecks int64

	// Generation is the generation of the current table, 0 before the
	// first query.
	Generation uint64

	// Names is the number of names in the current table.
	Names int

	Cached   bool
	Degraded bool
}

// table is one immutable enumeration of the root.
type table struct {
	stamp      root.Stamp
	generation uint64
	files      map[string]struct{}
	dirs       map[string]struct{}
	dirList    []string
	degraded   bool
}

func (t *table) names() []string {
	names := make([]string, 0, len(t.files))
	for name := range t.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Indexer owns the name table of one root.
type Indexer struct {
	root     *root.Root
	storage  *root.Storage
	cache    bool
	store    persistindex.Store
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	group singleflight.Group

	// mu guards current, checkedAt and dirty. Tables are immutable
	// once installed; readers take a pointer under the read lock and
	// use it without holding any lock.
	mu        sync.RWMutex
	current   *table
	checkedAt time.Time
	dirty     bool

	invalidated atomic.Bool

	enumerations atomic.Int64
	hydrations   atomic.Int64
	probes       atomic.Int64
	stampChecks  atomic.Int64
}

// New returns an indexer reading r through storage. Nothing is read
// until the first query.
func New(r *root.Root, storage *root.Storage, options Options) *Indexer {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := options.Clock
	if c == nil {
		c = clock.Real()
	}
	return &Indexer{
		root:     r,
		storage:  storage,
		cache:    options.Cache,
		store:    options.Store,
		interval: options.RevalidateInterval,
		clock:    c,
		logger:   logger.With("root", r.Identity(), "ordinal", r.Ordinal()),
	}
}

// Root returns the indexed root.
func (x *Indexer) Root() *root.Root { return x.root }

// Storage returns the storage the indexer reads. Byte reads go
// through it directly and never touch the table lock.
func (x *Indexer) Storage() *root.Storage { return x.storage }

// Cached reports whether lookups are memoized.
func (x *Indexer) Cached() bool { return x.cache }

// Lookup reports whether name is a file in the root.
func (x *Indexer) Lookup(name string) bool {
	found, _ := x.lookup(name)
	return found
}

// lookup also returns the generation of the table that answered, 0
// for uncached roots.
func (x *Indexer) lookup(name string) (bool, uint64) {
	if !x.cache {
		x.probes.Add(1)
		found, err := x.storage.Stat(name)
		if err != nil {
			x.logger.Warn("probing root failed", "name", name, "error", err)
			return false, 0
		}
		return found, 0
	}
	current := x.ensure()
	_, found := current.files[name]
	return found, current.generation
}

// HasDir reports whether dir is a directory in the root.
func (x *Indexer) HasDir(dir string) bool {
	if !x.cache {
		x.probes.Add(1)
		found, err := x.storage.IsDir(dir)
		if err != nil {
			x.logger.Warn("probing root failed", "dir", dir, "error", err)
			return false
		}
		return found
	}
	_, found := x.ensure().dirs[dir]
	return found
}

// Names returns every file name in the root, sorted.
func (x *Indexer) Names() []string {
	if x.cache {
		return x.ensure().names()
	}
	x.probes.Add(1)
	var names []string
	err := x.storage.Walk(func(name string, isDir bool) error {
		if !isDir {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		x.logger.Warn("listing root failed", "error", &EnumerationError{Root: x.root, Err: err})
		return nil
	}
	slices.Sort(names)
	return names
}

// Generation returns the generation of the current table after
// revalidating it if a revalidation is due. Uncached indexers have no
// table and always report 0.
func (x *Indexer) Generation() uint64 {
	if !x.cache {
		return 0
	}
	return x.ensure().generation
}

// Prepare builds the table now instead of on the first query. It is
// a no-op for uncached indexers and for tables already built.
func (x *Indexer) Prepare() {
	if x.cache {
		x.ensure()
	}
}

// Invalidate makes the next query re-probe the root's stamp. The table
// is rebuilt only if the stamp changed.
func (x *Indexer) Invalidate() {
	x.invalidated.Store(true)
}

// Dirty reports whether the table changed since it was last saved or
// hydrated.
func (x *Indexer) Dirty() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dirty
}

// Stats returns the indexer's counters.
func (x *Indexer) Stats() Stats {
	stats := Stats{
		Enumerations: x.enumerations.Load(),
		Hydrations:   x.hydrations.Load(),
		Probes:       x.probes.Load(),
		StampChecks:  x.stampChecks.Load(),
		Cached:       x.cache,
	}
	x.mu.RLock()
	if x.current != nil {
		stats.Generation = x.current.generation
		stats.Names = len(x.current.files)
		stats.Degraded = x.current.degraded
	}
	x.mu.RUnlock()
	return stats
}

// Snapshot returns the persistable form of the current table, or nil
// when there is none or it was built from a failed enumeration.
func (x *Indexer) Snapshot() *persistindex.Snapshot {
	x.mu.RLock()
	current := x.current
	x.mu.RUnlock()
	if current == nil || current.degraded {
		return nil
	}
	return x.snapshotOf(current)
}

func (x *Indexer) snapshotOf(t *table) *persistindex.Snapshot {
	names := t.names()
	records := make([]persistindex.Record, len(names))
	for i, name := range names {
		records[i] = persistindex.Record{Name: name, Ordinal: x.root.Ordinal(), Stamp: t.stamp}
	}
	return &persistindex.Snapshot{
		Stamp:   t.stamp,
		Dirs:    slices.Clone(t.dirList),
		Records: records,
		SavedAt: x.clock.Now().UTC(),
	}
}

// Flush saves the table to the store if it changed since the last
// save. It is a no-op without a store.
func (x *Indexer) Flush() error {
	if x.store == nil || !x.cache {
		return nil
	}
	x.mu.RLock()
	current, dirty := x.current, x.dirty
	x.mu.RUnlock()
	if !dirty || current == nil || current.degraded {
		return nil
	}

	if err := x.store.Save(x.root.Identity(), x.snapshotOf(current)); err != nil {
		return fmt.Errorf("saving index for %s: %w", x.root, err)
	}

	x.mu.Lock()
	if x.current == current {
		x.dirty = false
	}
	x.mu.Unlock()
	return nil
}

// ensure returns the current table, building or revalidating it first
// when needed. Only one goroutine does the work; the others wait for
// its result.
func (x *Indexer) ensure() *table {
	x.mu.RLock()
	current := x.current
	due := current == nil || x.invalidated.Load() || x.revalidationDue()
	x.mu.RUnlock()
	if !due {
		return current
	}

	result, _, _ := x.group.Do("refresh", func() (any, error) {
		return x.refresh(), nil
	})
	return result.(*table)
}

// revalidationDue must be called with mu held.
func (x *Indexer) revalidationDue() bool {
	return x.interval > 0 && clock.Since(x.clock, x.checkedAt) >= x.interval
}

func (x *Indexer) refresh() *table {
	x.mu.RLock()
	current := x.current
	due := x.revalidationDue()
	x.mu.RUnlock()

	if current == nil {
		x.invalidated.Store(false)
		if hydrated := x.hydrate(); hydrated != nil {
			return hydrated
		}
		return x.enumerate(1)
	}

	// Clearing the flag before probing means an Invalidate that
	// arrives during the probe triggers another one.
	invalidated := x.invalidated.Swap(false)
	if !invalidated && !due {
		return current
	}

	x.stampChecks.Add(1)
	stamp, err := x.root.Probe(current.dirList)
	if err != nil {
		x.logger.Warn("probing root stamp failed", "error", err)
		x.markChecked()
		return current
	}
	if stamp == current.stamp {
		x.markChecked()
		return current
	}

	x.logger.Debug("root changed",
		"generation", current.generation,
		"old_stamp", uint64(current.stamp),
		"new_stamp", uint64(stamp),
	)
	x.storage.Reset()
	return x.enumerate(current.generation + 1)
}

func (x *Indexer) markChecked() {
	x.mu.Lock()
	x.checkedAt = x.clock.Now()
	x.mu.Unlock()
}

// hydrate installs the persisted table when its stamp matches the
// root's live stamp. Returns nil when there is nothing usable.
func (x *Indexer) hydrate() *table {
	if x.store == nil {
		return nil
	}
	snapshot, err := x.store.Load(x.root.Identity())
	if err != nil {
		var corrupt *persistindex.CorruptError
		if errors.As(err, &corrupt) {
			x.logger.Warn("discarding corrupt persisted index", "error", err)
		} else {
			x.logger.Warn("loading persisted index failed", "error", err)
		}
		return nil
	}
	if snapshot == nil {
		return nil
	}

	x.stampChecks.Add(1)
	stamp, err := x.root.Probe(snapshot.Dirs)
	if err != nil {
		x.logger.Warn("probing root stamp failed", "error", err)
		return nil
	}
	if stamp != snapshot.Stamp {
		x.logger.Debug("persisted index is stale",
			"persisted_stamp", uint64(snapshot.Stamp),
			"live_stamp", uint64(stamp),
			"saved_at", snapshot.SavedAt,
		)
		return nil
	}

	hydrated := &table{
		stamp:      stamp,
		generation: 1,
		files:      make(map[string]struct{}, len(snapshot.Records)),
		dirs:       make(map[string]struct{}, len(snapshot.Dirs)),
		dirList:    slices.Clone(snapshot.Dirs),
	}
	for _, record := range snapshot.Records {
		if record.Stamp == stamp {
			hydrated.files[record.Name] = struct{}{}
		}
	}
	for _, dir := range snapshot.Dirs {
		hydrated.dirs[dir] = struct{}{}
	}

	x.hydrations.Add(1)
	x.install(hydrated, false)
	x.logger.Debug("index hydrated", "names", len(hydrated.files))
	return hydrated
}

// enumerate walks the whole root and installs the result at the given
// generation.
func (x *Indexer) enumerate(generation uint64) *table {
	x.enumerations.Add(1)
	started := x.clock.Now()

	built := &table{
		generation: generation,
		files:      make(map[string]struct{}),
		dirs:       make(map[string]struct{}),
	}
	walkErr := x.storage.Walk(func(name string, isDir bool) error {
		if isDir {
			built.dirs[name] = struct{}{}
			built.dirList = append(built.dirList, name)
		} else {
			built.files[name] = struct{}{}
		}
		return nil
	})
	slices.Sort(built.dirList)

	// The stamp is taken after the walk because a directory root's
	// stamp covers the sub-directories the walk discovered.
	x.stampChecks.Add(1)
	stamp, probeErr := x.root.Probe(built.dirList)
	if probeErr != nil {
		x.logger.Warn("probing root stamp failed", "error", probeErr)
		stamp = root.StampAbsent
	}
	built.stamp = stamp

	if walkErr != nil {
		x.logger.Warn("root enumeration failed, treating root as empty",
			"generation", generation,
			"error", &EnumerationError{Root: x.root, Err: walkErr},
		)
		// dirList stays so the next probe hashes the same directories
		// and the walk is not retried until one of them changes.
		built.files = map[string]struct{}{}
		built.dirs = map[string]struct{}{}
		built.degraded = true
		x.install(built, false)
		return built
	}

	x.install(built, probeErr == nil)
	x.logger.Debug("root enumerated",
		"generation", generation,
		"names", len(built.files),
		"dirs", len(built.dirList),
		"duration", clock.Since(x.clock, started),
	)
	return built
}

func (x *Indexer) install(t *table, dirty bool) {
	x.mu.Lock()
	x.current = t
	x.checkedAt = x.clock.Now()
	x.dirty = dirty
	x.mu.Unlock()
}
