// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// fixtureTime is the modification time of every archive entry.
var fixtureTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// WriteArchive writes files (slash-separated name → content) as an
// archive at path. The format follows the extension: .zip/.jar,
// .tar, .tar.gz/.tgz, .tar.zst/.tzst, or .tar.lz4. Parent directory
// entries are emitted for tar formats so that directory walks see them.
func WriteArchive(t testing.TB, archivePath string, files map[string]string) {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	file, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("creating %s: %v", archivePath, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			t.Fatalf("closing %s: %v", archivePath, err)
		}
	}()

	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".jar"):
		writeZip(t, file, names, files)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		compressor := gzip.NewWriter(file)
		writeTar(t, compressor, names, files)
		closeOrFatal(t, compressor, archivePath)
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		compressor, err := zstd.NewWriter(file)
		if err != nil {
			t.Fatalf("creating zstd writer: %v", err)
		}
		writeTar(t, compressor, names, files)
		closeOrFatal(t, compressor, archivePath)
	case strings.HasSuffix(lower, ".tar.lz4"):
		compressor := lz4.NewWriter(file)
		writeTar(t, compressor, names, files)
		closeOrFatal(t, compressor, archivePath)
	case strings.HasSuffix(lower, ".tar"):
		writeTar(t, file, names, files)
	default:
		t.Fatalf("WriteArchive: unrecognized extension in %s", archivePath)
	}
}

func writeZip(t testing.TB, w io.Writer, names []string, files map[string]string) {
	t.Helper()
	writer := zip.NewWriter(w)
	for _, name := range names {
		entry, err := writer.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: fixtureTime,
		})
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := io.WriteString(entry, files[name]); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("finishing zip: %v", err)
	}
}

func writeTar(t testing.TB, w io.Writer, names []string, files map[string]string) {
	t.Helper()
	writer := tar.NewWriter(w)
	written := make(map[string]bool)
	for _, name := range names {
		for _, dir := range parentDirs(name) {
			if written[dir] {
				continue
			}
			written[dir] = true
			err := writer.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     dir + "/",
				Mode:     0o755,
				ModTime:  fixtureTime,
			})
			if err != nil {
				t.Fatalf("writing tar directory %s: %v", dir, err)
			}
		}
		content := files[name]
		err := writer.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			ModTime:  fixtureTime,
		})
		if err != nil {
			t.Fatalf("writing tar header %s: %v", name, err)
		}
		if _, err := io.WriteString(writer, content); err != nil {
			t.Fatalf("writing tar entry %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("finishing tar: %v", err)
	}
}

// parentDirs returns the ancestors of name, outermost first.
func parentDirs(name string) []string {
	var dirs []string
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		dirs = append([]string{dir}, dirs...)
	}
	return dirs
}

func closeOrFatal(t testing.TB, closer io.Closer, archivePath string) {
	t.Helper()
	if err := closer.Close(); err != nil {
		t.Fatalf("finishing %s: %v", archivePath, err)
	}
}
