// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package persistindex stores root index snapshots across process
// runs.
//
// A [Snapshot] is the enumeration result for one root: every name it
// contained, the sub-directories it had (needed to recompute a
// directory root's stamp) and the stamp the root had when it was
// enumerated. Snapshots are keyed by [root.Identity], so the same
// directory or archive shares one snapshot no matter where it appears
// in a resolver's root list.
//
// The store never decides whether a snapshot is current. The indexer
// loads it, probes the root, and uses the snapshot only when the
// stamps match; otherwise it enumerates and overwrites the snapshot on
// its next save. A store therefore only has to be durable, not
// coherent: losing or corrupting a snapshot costs one enumeration.
//
// Two implementations are provided. [FileStore] writes one
// CBOR-encoded file per root under a directory, framed with a magic
// number, a format version and a CRC32C. [SQLiteStore] keeps every
// root in one SQLite database, which suits machines where many
// processes share one cache directory.
//
// Load reports three outcomes: a snapshot, (nil, nil) for "nothing
// usable" (absent, or written by a different format version), and a
// [*CorruptError] for bytes that could not be decoded. Callers log
// the latter and treat it as absent.
package persistindex
