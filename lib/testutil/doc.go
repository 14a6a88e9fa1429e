// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for rootset packages.
//
// [WriteTree] materializes a map of slash-separated names to contents
// under a directory, creating parent directories as needed. Tests use
// it to build directory roots and to mutate them between lookups.
//
// [WriteArchive] writes the same kind of map as an archive in any
// format lib/archive reads (zip, tar, tar.gz, tar.zst, tar.lz4),
// choosing the format from the file extension. Entries are written in
// sorted order with a fixed modification time so fixtures are
// byte-identical across runs.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) for tests that wait
// on goroutines or filesystem notifications.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
