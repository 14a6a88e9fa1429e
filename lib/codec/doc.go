// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used by rootset's on-disk
// formats.
//
// Persisted index snapshots are read by a different process than the
// one that wrote them, often a different build of it. The encoder uses
// Core Deterministic Encoding (RFC 8949 §4.2) so the same snapshot
// always produces identical bytes, which keeps the CRC trailer written
// by lib/persistindex stable across runs. The decoder ignores unknown
// fields so that older readers tolerate newer writers within one
// format version.
//
//	data, err := codec.Marshal(snapshot)
//	err = codec.Unmarshal(data, &snapshot)
//
// Types that are only ever persisted use `cbor` struct tags. Types that
// also appear in CLI --json output use `json` tags, which fxamacker/cbor
// reads as a fallback. A field never carries both.
package codec
