// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cachepool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/rootset/lib/indexer"
	"github.com/bureau-foundation/rootset/lib/root"
)

// Factory builds the index set for a root list that has no live pool
// entry yet.
type Factory func(roots []*root.Root) (*indexer.Set, error)

// Options configures a Pool.
type Options struct {
	Logger *slog.Logger
}

// Stats summarizes a pool.
type Stats struct {
	Entries    int
	References int
	Created    int64
	Reused     int64
	TornDown   int64
}

// Pool maps root fingerprints to shared index sets.
type Pool struct {
	entries sync.Map // root.Fingerprint → *entry
	logger  *slog.Logger

	created  atomic.Int64
	reused   atomic.Int64
	tornDown atomic.Int64
}

type entry struct {
	fingerprint root.Fingerprint

	// ready is closed once set or err is assigned. Acquirers that find
	// an entry under construction wait on it without holding mu.
	ready chan struct{}
	set   *indexer.Set
	err   error

	mu         sync.Mutex
	references int
	dead       bool
}

// New returns an empty pool.
func New(options Options) *Pool {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{logger: logger}
}

// Handle is one reference to a pool entry.
type Handle struct {
	pool     *Pool
	entry    *entry
	released atomic.Bool
}

// Set returns the shared index set.
func (h *Handle) Set() *indexer.Set { return h.entry.set }

// Release drops the reference. The last release flushes and closes the
// set. Release is idempotent per handle.
func (h *Handle) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	return h.pool.release(h.entry)
}

// Acquire returns a handle to the entry for roots, creating it with
// factory if no live entry exists. The factory runs outside every
// pool lock; concurrent acquirers of the same fingerprint wait for it.
func (p *Pool) Acquire(roots []*root.Root, factory Factory) (*Handle, error) {
	fingerprint := root.FingerprintOf(roots)
	for {
		fresh := &entry{fingerprint: fingerprint, ready: make(chan struct{}), references: 1}
		loaded, existing := p.entries.LoadOrStore(fingerprint, fresh)
		if !existing {
			return p.build(fresh, roots, factory)
		}

		candidate := loaded.(*entry)
		<-candidate.ready
		candidate.mu.Lock()
		if candidate.dead || candidate.err != nil {
			candidate.mu.Unlock()
			// The entry is on its way out of the map. Remove it if it
			// is still there and try again.
			p.entries.CompareAndDelete(fingerprint, candidate)
			continue
		}
		candidate.references++
		candidate.mu.Unlock()

		p.reused.Add(1)
		return &Handle{pool: p, entry: candidate}, nil
	}
}

func (p *Pool) build(fresh *entry, roots []*root.Root, factory Factory) (*Handle, error) {
	set, err := factory(roots)
	if err == nil && set == nil {
		err = errors.New("cachepool: factory returned a nil set")
	}

	fresh.mu.Lock()
	if err != nil {
		fresh.err = err
		fresh.dead = true
		fresh.references = 0
	} else {
		fresh.set = set
	}
	fresh.mu.Unlock()
	close(fresh.ready)

	if err != nil {
		p.entries.CompareAndDelete(fresh.fingerprint, fresh)
		return nil, fmt.Errorf("building index set: %w", err)
	}

	p.created.Add(1)
	p.logger.Debug("cache pool entry created",
		"fingerprint", fresh.fingerprint.String(),
		"roots", len(roots),
	)
	return &Handle{pool: p, entry: fresh}, nil
}

func (p *Pool) release(e *entry) error {
	e.mu.Lock()
	e.references--
	if e.references > 0 {
		e.mu.Unlock()
		return nil
	}
	e.dead = true
	e.mu.Unlock()

	p.entries.CompareAndDelete(e.fingerprint, e)
	p.tornDown.Add(1)

	flushErr := e.set.Flush()
	closeErr := e.set.Close()
	p.logger.Debug("cache pool entry torn down", "fingerprint", e.fingerprint.String())
	return errors.Join(flushErr, closeErr)
}

// Len returns the number of live entries.
func (p *Pool) Len() int {
	count := 0
	p.entries.Range(func(_, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		if !e.dead {
			count++
		}
		e.mu.Unlock()
		return true
	})
	return count
}

// Stats returns the pool's counters and current reference totals.
func (p *Pool) Stats() Stats {
	stats := Stats{
		Created:  p.created.Load(),
		Reused:   p.reused.Load(),
		TornDown: p.tornDown.Load(),
	}
	p.entries.Range(func(_, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		if !e.dead {
			stats.Entries++
			stats.References += e.references
		}
		e.mu.Unlock()
		return true
	})
	return stats
}

// Lookup returns the live set for roots without taking a reference.
// Intended for diagnostics.
func (p *Pool) Lookup(roots []*root.Root) (*indexer.Set, bool) {
	loaded, ok := p.entries.Load(root.FingerprintOf(roots))
	if !ok {
		return nil, false
	}
	e := loaded.(*entry)
	select {
	case <-e.ready:
	default:
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead || e.set == nil {
		return nil, false
	}
	return e.set, true
}
