// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive is the archive-reader abstraction behind archive
// roots.
//
// rootset never parses container formats itself. An [Archive] is an
// [fs.FS] that can be closed, and an [Opener] turns a path into one.
// [DefaultOpener] picks a reader from the file name:
//
//   - .zip, .jar: klauspost/compress/zip, read in place through the
//     central directory.
//   - .tar: nlepage/go-tarfs over the raw file.
//   - .tar.gz, .tgz: go-tarfs over a klauspost/compress/gzip stream.
//   - .tar.zst, .tzst: go-tarfs over a klauspost/compress/zstd stream.
//   - .tar.lz4: go-tarfs over a pierrec/lz4 frame stream.
//
// Tar-family archives are indexed into memory on open (tar has no
// central directory), so holding one open costs memory proportional to
// its size. Zip archives keep only the directory in memory and read
// entries from the file on demand.
//
// Callers that need another format supply their own Opener; root
// classification still relies on [IsArchiveName], so custom formats
// must use one of the recognized extensions or be wrapped by name.
package archive
