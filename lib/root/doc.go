// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package root describes one storage location consulted by a resolver
// and provides access to its contents.
//
// A [Root] is an immutable value: its ordinal (resolution priority), its
// [Kind] (directory or archive), its canonical location, its
// [LockPolicy], and whether it is excluded from bootstrap fallback.
// [New] classifies the location and fails with [*InvalidRootError]
// when it is neither a directory nor a recognized archive.
//
// Two derived values key every cache layer above this package:
//
//   - [Root.Identity] is "kind:location". It is stable across processes
//     and independent of ordinal and policy, so the persistent index can
//     be shared by resolvers that list the same root at different
//     positions.
//   - [FingerprintOf] hashes an ordered list of identities with BLAKE3,
//     mixing in each root's lock policy and bootstrap exclusion. Order
//     is part of the fingerprint because it is part of resolution
//     semantics; the cache pool keys shared index sets by it.
//
// [Root.Probe] computes a [Stamp], a cheap marker of the root's
// mutation state. For a directory it hashes the modification times of
// the root and of every sub-directory the caller already knows about:
// adding or removing an entry anywhere in the tree changes the mtime of
// its parent, so a stat per directory detects it without listing
// anything. For an archive it hashes size, mtime, device and inode, so
// the stamp changes only when the file is rewritten or replaced.
//
// [Storage] reads a root's contents. Directory storage goes straight to
// the OS. Archive storage honors the lock policy: [HoldOpen] keeps one
// handle until [Storage.Reset] or [Storage.Close], [OpenPerAccess]
// opens and closes the archive around every operation so another
// process may rewrite or delete it in between.
package root
