// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The indexer decides whether a root must be re-probed by comparing the
// time of its last check against a revalidation interval, the
// persistent index records when a snapshot was saved, and the watcher
// debounces bursts of filesystem events with a timer. All three take a
// Clock so that tests can move time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	idx := indexer.New(r, indexer.Options{Clock: c, RevalidateInterval: time.Minute})
//	c.Advance(2 * time.Minute) // the next lookup re-probes the root
//
// Production code uses Real().
package clock
