// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/rootset/lib/clock"
	"github.com/bureau-foundation/rootset/lib/persistindex"
	"github.com/bureau-foundation/rootset/lib/root"
)

// SetOptions configures a Set.
type SetOptions struct {
	// Condition decides caching per root. Nil means AlwaysCache.
	Condition CachingCondition

	// Store is shared by all indexers in the set. Nil disables
	// persistence.
	Store persistindex.Store

	// NegativeCacheSize bounds the number of remembered misses. Zero
	// or negative disables the negative cache.
	NegativeCacheSize int

	RevalidateInterval time.Duration
	Clock              clock.Clock
	Logger             *slog.Logger
}

// SetStats aggregates a set's counters.
type SetStats struct {
	Indexers        []Stats
	NegativeHits    int64
	NegativeEntries int
}

// Set is the ordered list of indexers for one root list plus a
// negative cache of names none of them contains.
//
// A negative entry is tagged with the sum of the indexers' generations
// when the miss was recorded. Generations only increase, so any
// rebuilt table makes the sum larger and the entry stale.
type Set struct {
	roots       []*root.Root
	fingerprint root.Fingerprint
	indexers    []*Indexer
	cacheable   bool
	negative    *lru.Cache[string, uint64]
	logger      *slog.Logger

	negativeHits atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewSet opens a storage for every root and wraps each in an indexer.
// The set owns those storages and closes them in Close.
func NewSet(roots []*root.Root, options SetOptions) (*Set, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	condition := options.Condition
	if condition == nil {
		condition = AlwaysCache
	}

	set := &Set{
		roots:       roots,
		fingerprint: root.FingerprintOf(roots),
		indexers:    make([]*Indexer, len(roots)),
		cacheable:   true,
		logger:      logger,
	}
	for i, r := range roots {
		cache := condition.ShouldCache(r)
		set.cacheable = set.cacheable && cache
		set.indexers[i] = New(r, root.Open(r), Options{
			Cache:              cache,
			Store:              options.Store,
			RevalidateInterval: options.RevalidateInterval,
			Clock:              options.Clock,
			Logger:             logger,
		})
	}

	if options.NegativeCacheSize > 0 {
		negative, err := lru.New[string, uint64](options.NegativeCacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating negative cache: %w", err)
		}
		set.negative = negative
	}
	return set, nil
}

// Roots returns the roots in priority order.
func (s *Set) Roots() []*root.Root { return s.roots }

// Fingerprint identifies the ordered root list.
func (s *Set) Fingerprint() root.Fingerprint { return s.fingerprint }

// Indexers returns the indexers in priority order.
func (s *Set) Indexers() []*Indexer { return s.indexers }

// Cacheable reports whether every root permits caching, which is the
// condition for remembering misses.
func (s *Set) Cacheable() bool { return s.cacheable }

// Find returns the first indexer, in priority order, whose root
// contains name.
func (s *Set) Find(name string) (*Indexer, bool) {
	remember := s.cacheable && s.negative != nil
	if remember {
		// An entry exists only after every root was consulted, so
		// summing generations here never triggers a first enumeration.
		if recorded, ok := s.negative.Get(name); ok && recorded == s.generationSum() {
			s.negativeHits.Add(1)
			return nil, false
		}
	}

	// The miss is tagged with the generations of the tables that were
	// actually consulted, not ones rebuilt while the loop ran.
	var consulted uint64
	for _, x := range s.indexers {
		found, generation := x.lookup(name)
		if found {
			return x, true
		}
		consulted += generation
	}

	if remember {
		s.negative.Add(name, consulted)
	}
	return nil, false
}

// FindAll returns every indexer whose root contains name, in priority
// order.
func (s *Set) FindAll(name string) []*Indexer {
	var found []*Indexer
	for _, x := range s.indexers {
		if x.Lookup(name) {
			found = append(found, x)
		}
	}
	return found
}

// Names returns every name across all roots in priority order of first
// occurrence, without duplicates.
func (s *Set) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, x := range s.indexers {
		for _, name := range x.Names() {
			if _, duplicate := seen[name]; duplicate {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// Invalidate makes every indexer re-probe its root on the next query.
func (s *Set) Invalidate() {
	for _, x := range s.indexers {
		x.Invalidate()
	}
}

// Stats returns the counters of every indexer and the negative cache.
func (s *Set) Stats() SetStats {
	stats := SetStats{
		Indexers:     make([]Stats, len(s.indexers)),
		NegativeHits: s.negativeHits.Load(),
	}
	for i, x := range s.indexers {
		stats.Indexers[i] = x.Stats()
	}
	if s.negative != nil {
		stats.NegativeEntries = s.negative.Len()
	}
	return stats
}

// Flush saves every dirty indexer. All indexers are attempted; the
// errors are joined.
func (s *Set) Flush() error {
	var errs []error
	for _, x := range s.indexers {
		if err := x.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every storage. It runs once; later calls return the
// first call's result.
func (s *Set) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, x := range s.indexers {
			if err := x.Storage().Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("index set closed", "fingerprint", s.fingerprint.String())
	})
	return s.closeErr
}

func (s *Set) generationSum() uint64 {
	var sum uint64
	for _, x := range s.indexers {
		sum += x.Generation()
	}
	return sum
}
