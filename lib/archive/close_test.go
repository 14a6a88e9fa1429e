// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/rootset/lib/testutil"
)

func TestTarArchiveHoldsFileUntilClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.tar")
	testutil.WriteArchive(t, path, map[string]string{"com/example/Foo.class": "foo-bytes"})

	opened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tar, ok := opened.(*tarArchive)
	if !ok {
		t.Fatalf("Open returned %T, want *tarArchive", opened)
	}
	file, ok := tar.file.(*os.File)
	if !ok {
		t.Fatalf("plain tar holds %T, want *os.File", tar.file)
	}

	content, err := fs.ReadFile(opened, "com/example/Foo.class")
	if err != nil {
		t.Fatalf("ReadFile before Close: %v", err)
	}
	if string(content) != "foo-bytes" {
		t.Errorf("content = %q, want %q", content, "foo-bytes")
	}

	if err := opened.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := file.Stat(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("file after Close: Stat err = %v, want os.ErrClosed", err)
	}
	if err := opened.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCompressedTarArchiveHoldsNoFile(t *testing.T) {
	for _, name := range []string{"fixture.tar.gz", "fixture.tar.zst", "fixture.tar.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			testutil.WriteArchive(t, path, map[string]string{"a.txt": "a"})

			opened, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer opened.Close()
			if tar := opened.(*tarArchive); tar.file != nil {
				t.Errorf("compressed tar holds %T, want no file", tar.file)
			}
			if content, err := fs.ReadFile(opened, "a.txt"); err != nil || string(content) != "a" {
				t.Errorf("ReadFile = %q, %v", content, err)
			}
		})
	}
}
