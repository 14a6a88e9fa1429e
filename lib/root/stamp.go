// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package root

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// Stamp is a cheap marker of a root's mutation state. Equal stamps mean
// the set of names in the root has not changed.
type Stamp uint64

// StampAbsent is the stamp of a location that does not exist.
const StampAbsent Stamp = 0

// Probe computes the current stamp. For directory roots, dirs lists
// the slash-separated sub-directories discovered by the last
// enumeration (the root itself is always included); for archive roots
// it is ignored.
func (r *Root) Probe(dirs []string) (Stamp, error) {
	info, err := os.Stat(r.location)
	if errors.Is(err, fs.ErrNotExist) {
		return StampAbsent, nil
	}
	if err != nil {
		return StampAbsent, fmt.Errorf("probing %s: %w", r.location, err)
	}

	hasher := blake3.New()
	if r.kind == KindArchive {
		device, inode := fileIdentity(r.location)
		writeUint64(hasher, uint64(info.Size()))
		writeUint64(hasher, uint64(info.ModTime().UnixNano()))
		writeUint64(hasher, device)
		writeUint64(hasher, inode)
		return finish(hasher), nil
	}

	writeDir(hasher, "", info)

	sorted := make([]string, len(dirs))
	copy(sorted, dirs)
	sort.Strings(sorted)
	for _, dir := range sorted {
		if dir == "" || dir == "." {
			continue
		}
		info, err := os.Stat(filepath.Join(r.location, filepath.FromSlash(dir)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			writeString(hasher, dir)
			writeString(hasher, "absent")
		case err != nil:
			return StampAbsent, fmt.Errorf("probing %s/%s: %w", r.location, dir, err)
		default:
			writeDir(hasher, dir, info)
		}
	}
	return finish(hasher), nil
}

func writeDir(hasher *blake3.Hasher, dir string, info fs.FileInfo) {
	writeString(hasher, dir)
	writeUint64(hasher, uint64(info.ModTime().UnixNano()))
	if !info.IsDir() {
		// A directory replaced by a file must not hash like the
		// directory did.
		writeString(hasher, "not-a-directory")
	}
}

func writeString(hasher *blake3.Hasher, value string) {
	writeUint64(hasher, uint64(len(value)))
	hasher.Write([]byte(value))
}

func writeUint64(hasher *blake3.Hasher, value uint64) {
	var buffer [8]byte
	binary.LittleEndian.PutUint64(buffer[:], value)
	hasher.Write(buffer[:])
}

// finish truncates the digest to 64 bits, never returning StampAbsent
// for a location that exists.
func finish(hasher *blake3.Hasher) Stamp {
	sum := hasher.Sum(nil)
	stamp := Stamp(binary.LittleEndian.Uint64(sum[:8]))
	if stamp == StampAbsent {
		stamp = 1
	}
	return stamp
}
