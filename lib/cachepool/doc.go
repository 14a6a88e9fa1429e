// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachepool shares index sets between resolvers that use the
// same ordered list of roots.
//
// Entries are keyed by [root.Fingerprint], so two resolvers share an
// entry only when their root lists match exactly, order, lock policy
// and bootstrap exclusion included. An
// entry is reference counted: [Pool.Acquire] returns a [Handle] and
// the entry is flushed and closed when the last handle is released.
//
// The registry is a sync.Map and every entry has its own mutex, so
// acquiring or releasing one fingerprint never waits on another, and
// no lock of the pool is held while an entry's factory runs or while
// any indexer enumerates. An entry that reached zero references is
// marked dead under its own mutex before it is removed from the map;
// an acquirer that finds a dead entry retries and creates a fresh one
// rather than resurrecting it.
//
// A pool is an explicit value. There is no process-wide default; the
// caller decides which resolvers share one.
package cachepool
