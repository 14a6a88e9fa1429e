// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package root

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/rootset/lib/archive"
)

// ErrClosed is returned by Storage operations after Close.
var ErrClosed = errors.New("root: storage closed")

// Storage reads the contents of one root. It is safe for concurrent
// use. Names are slash-separated and relative to the root.
type Storage struct {
	root *Root

	// mu guards held and closed. Readers of a held archive keep the
	// read lock for the duration of the operation so that Reset and
	// Close never pull the handle out from under them.
	mu     sync.RWMutex
	held   archive.Archive
	closed bool
}

// Open returns a Storage for r. Nothing is opened until the first
// operation.
func Open(r *Root) *Storage {
	return &Storage{root: r}
}

// Root returns the root this storage reads.
func (s *Storage) Root() *Root { return s.root }

// Walk calls fn for every entry below the root, directories first
// within each level in lexical order. A root whose location does not
// exist walks as empty.
//
// Symlinks are followed so that Walk agrees with Stat: a link to a
// file is a file, a link to a directory is a directory whose contents
// are walked under the link's name, and a dangling link is skipped. A
// directory link that leads back into a directory already being walked
// is reported but not descended.
func (s *Storage) Walk(fn func(name string, isDir bool) error) error {
	return s.withFS(func(filesystem fs.FS) error {
		w := &walker{filesystem: filesystem, fn: fn}
		if s.root.kind == KindDirectory {
			w.realPath = func(name string) (string, error) {
				return filepath.EvalSymlinks(filepath.Join(s.root.location, filepath.FromSlash(name)))
			}
		}
		return w.walk(".", nil)
	})
}

// maxLinkDepth bounds nested directory links where real paths are not
// available, as ELOOP does.
const maxLinkDepth = 40

type walker struct {
	filesystem fs.FS
	fn         func(name string, isDir bool) error

	// realPath resolves a name to its real OS path. Nil for archives.
	realPath func(name string) (string, error)
}

// walk walks dir. followed holds the real paths of the directory links
// expanded on the way to dir.
func (w *walker) walk(dir string, followed []string) error {
	return fs.WalkDir(w.filesystem, dir, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			if name == "." && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if name == dir {
			return nil
		}
		if entry.Type()&fs.ModeSymlink == 0 {
			return w.fn(name, entry.IsDir())
		}

		info, err := fs.Stat(w.filesystem, name)
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return w.fn(name, false)
		}
		if err := w.fn(name, true); err != nil {
			return err
		}
		target, descend := w.follow(name, followed)
		if !descend {
			return nil
		}
		return w.walk(name, append(followed[:len(followed):len(followed)], target))
	})
}

// follow reports whether the directory link at name may be descended
// and the real path of its target.
func (w *walker) follow(name string, followed []string) (string, bool) {
	if w.realPath == nil {
		return name, len(followed) < maxLinkDepth
	}
	target, err := w.realPath(name)
	if err != nil {
		return "", false
	}
	parent, err := w.realPath(path.Dir(name))
	if err != nil {
		return "", false
	}
	if isWithin(parent, target) || slices.Contains(followed, target) {
		return "", false
	}
	return target, true
}

// isWithin reports whether child is dir or lies below it.
func isWithin(child, dir string) bool {
	return child == dir || strings.HasPrefix(child, dir+string(filepath.Separator))
}

// Stat reports whether name exists as a file (not a directory).
func (s *Storage) Stat(name string) (bool, error) {
	var found bool
	err := s.withFS(func(filesystem fs.FS) error {
		info, err := fs.Stat(filesystem, name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		found = !info.IsDir()
		return nil
	})
	return found, err
}

// IsDir reports whether dir exists as a directory. "." is the root
// itself and exists whenever the location does.
func (s *Storage) IsDir(dir string) (bool, error) {
	var found bool
	err := s.withFS(func(filesystem fs.FS) error {
		info, err := fs.Stat(filesystem, dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		found = info.IsDir()
		return nil
	})
	return found, err
}

// ReadFile returns the content of name.
func (s *Storage) ReadFile(name string) ([]byte, error) {
	var content []byte
	err := s.withFS(func(filesystem fs.FS) error {
		var err error
		content, err = fs.ReadFile(filesystem, name)
		return err
	})
	return content, err
}

// Reset closes a held archive handle so the next operation reopens the
// archive. Called when the root's stamp changes.
func (s *Storage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held != nil {
		s.held.Close()
		s.held = nil
	}
}

// Close releases the held archive handle, if any. Close is idempotent;
// the handle is closed exactly once.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.held == nil {
		return nil
	}
	err := s.held.Close()
	s.held = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", s.root.location, err)
	}
	return nil
}

// withFS runs fn against the root's contents under the lock policy.
func (s *Storage) withFS(fn func(fs.FS) error) error {
	if s.root.kind == KindDirectory {
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			return ErrClosed
		}
		return fn(os.DirFS(s.root.location))
	}

	if s.root.policy == OpenPerAccess {
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			return ErrClosed
		}
		opened, err := s.openArchive()
		if err != nil {
			return err
		}
		defer opened.Close()
		return fn(opened)
	}

	for {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return ErrClosed
		}
		if s.held != nil {
			err := fn(s.held)
			s.mu.RUnlock()
			return err
		}
		s.mu.RUnlock()

		s.mu.Lock()
		if !s.closed && s.held == nil {
			opened, err := s.openArchive()
			if err != nil {
				s.mu.Unlock()
				return err
			}
			s.held = opened
		}
		s.mu.Unlock()
	}
}

// openArchive opens the archive, mapping a missing file to an empty
// filesystem so that Walk and Stat treat it as a root with no entries.
func (s *Storage) openArchive() (archive.Archive, error) {
	opened, err := s.root.opener.Open(s.root.location)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyArchive{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", s.root.location, err)
	}
	return opened, nil
}

// emptyArchive stands in for an archive that does not exist yet.
type emptyArchive struct{}

func (emptyArchive) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func (emptyArchive) Close() error { return nil }
