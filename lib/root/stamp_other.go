// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !darwin && !linux

package root

// fileIdentity is unavailable here; size and mtime alone stamp archives.
func fileIdentity(string) (device, inode uint64) {
	return 0, 0
}
