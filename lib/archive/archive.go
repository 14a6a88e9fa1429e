// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/nlepage/go-tarfs"
	"github.com/pierrec/lz4/v4"
)

// Archive is an opened archive. Entry names are slash-separated paths
// relative to the archive root, as required by [fs.FS].
type Archive interface {
	fs.FS
	io.Closer
}

// Opener opens the archive stored at path.
type Opener interface {
	Open(path string) (Archive, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Archive, error)

// Open calls f(path).
func (f OpenerFunc) Open(path string) (Archive, error) { return f(path) }

// DefaultOpener opens every format listed in the package documentation.
var DefaultOpener Opener = OpenerFunc(Open)

// Format identifies an archive container format.
type Format int

const (
	FormatZip Format = iota + 1
	FormatTar
	FormatTarGzip
	FormatTarZstd
	FormatTarLZ4
)

// String returns the canonical extension of the format.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarZstd:
		return "tar.zst"
	case FormatTarLZ4:
		return "tar.lz4"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// suffixes is checked in order, so compound extensions come before the
// plain ".tar" they end with.
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGzip},
	{".tgz", FormatTarGzip},
	{".tar.zst", FormatTarZstd},
	{".tzst", FormatTarZstd},
	{".tar.lz4", FormatTarLZ4},
	{".tar", FormatTar},
	{".zip", FormatZip},
	{".jar", FormatZip},
}

// FormatOf returns the format implied by the file name's extension.
// Matching is case-insensitive.
func FormatOf(name string) (Format, bool) {
	lower := strings.ToLower(name)
	for _, candidate := range suffixes {
		if strings.HasSuffix(lower, candidate.suffix) {
			return candidate.format, true
		}
	}
	return 0, false
}

// IsArchiveName reports whether name carries a recognized archive
// extension.
func IsArchiveName(name string) bool {
	_, ok := FormatOf(name)
	return ok
}

// ErrUnsupportedFormat is returned by Open for file names without a
// recognized extension.
var ErrUnsupportedFormat = errors.New("archive: unsupported format")

// Open opens the archive at path using the reader for its extension.
func Open(path string) (Archive, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("opening %s: %w", path, ErrUnsupportedFormat)
	}
	if format == FormatZip {
		reader, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("opening zip %s: %w", path, err)
		}
		return reader, nil
	}
	return openTar(path, format)
}

// tarArchive serves a tar index. For a plain tar the index reads entry
// data lazily from file, which stays open until Close; compressed tars
// are buffered while indexing and hold no file.
type tarArchive struct {
	fs.FS
	file io.Closer
}

func (a *tarArchive) Open(name string) (fs.File, error) {
	if a.FS == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrClosed}
	}
	return a.FS.Open(name)
}

func (a *tarArchive) Close() error {
	a.FS = nil
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func openTar(path string, format Format) (archive Archive, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s %s: %w", format, path, err)
	}

	if format == FormatTar {
		filesystem, err := tarfs.New(file)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("indexing %s %s: %w", format, path, err), file.Close())
		}
		return &tarArchive{FS: filesystem, file: file}, nil
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	var stream io.Reader
	switch format {
	case FormatTarGzip:
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("reading gzip header of %s: %w", path, err)
		}
		defer gzipReader.Close()
		stream = gzipReader
	case FormatTarZstd:
		zstdReader, err := zstd.NewReader(file, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("reading zstd frame of %s: %w", path, err)
		}
		defer zstdReader.Close()
		stream = zstdReader
	case FormatTarLZ4:
		stream = lz4.NewReader(file)
	default:
		return nil, fmt.Errorf("opening %s: %w", path, ErrUnsupportedFormat)
	}

	filesystem, err := tarfs.New(stream)
	if err != nil {
		return nil, fmt.Errorf("indexing %s %s: %w", format, path, err)
	}
	return &tarArchive{FS: filesystem}, nil
}
