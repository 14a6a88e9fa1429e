// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watch turns filesystem notifications into index
// invalidations for directory roots.
//
// Stamps make a stale index cheap to detect, but only when something
// asks. A [Watcher] asks on the resolver's behalf: every directory
// below a registered root is watched through fsnotify, sub-directories
// created later are added as they appear, and a burst of events under
// one root results in a single callback after a debounce delay. The
// callback is normally [indexer.Indexer.Invalidate], so the next
// lookup re-probes the stamp and rebuilds the table only if it really
// changed.
//
// Archive roots are not watched; their stamp is a single stat and a
// revalidation interval covers them.
package watch
