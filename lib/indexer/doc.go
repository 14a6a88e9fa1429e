// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package indexer answers "is this name in this root" with at most one
// enumeration of the root per generation.
//
// An [Indexer] owns the name table of one [root.Root]. The first query
// either hydrates the table from a persisted snapshot whose stamp
// matches the root's live stamp, or walks the whole root once and
// records every file and directory. Later queries are map lookups.
// Concurrent first queries share one walk through a singleflight
// group; nobody enumerates twice and nobody sees a half-built table.
//
// Generations. Every table is tagged with the [root.Stamp] it was built
// from and the indexer's generation counter, which increases each time
// the table is rebuilt because the stamp changed. Queries do not probe
// the stamp by default; with a revalidation interval a query issued
// after the interval has elapsed re-probes, and [Indexer.Invalidate]
// forces the next query to re-probe regardless of the interval. A
// filesystem watcher calls Invalidate on change notifications.
//
// Uncached roots. A [CachingCondition] may forbid caching for a root
// (build output that changes under the resolver, say). Such an
// indexer never builds a table: every Lookup goes to storage and the
// probe counter in [Stats] grows with each call.
//
// Failures. An I/O error while enumerating is logged and leaves the
// root known-empty for the stamp that was current; the walk is not
// retried until the stamp changes. Lookups never fail because of a
// broken root, they just stop finding names in it.
//
// A [Set] is the ordered list of indexers for one resolver's roots
// plus a bounded negative cache of names no root contains. Sets are
// what the cache pool shares between resolvers.
package indexer
