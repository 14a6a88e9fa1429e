// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package root

import "golang.org/x/sys/unix"

// fileIdentity returns the device and inode of path, so a replaced
// archive gets a new stamp even when size and mtime match. Errors
// yield zeros; the caller has already stat'ed the file successfully.
func fileIdentity(path string) (device, inode uint64) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, 0
	}
	return uint64(stat.Dev), uint64(stat.Ino)
}
