// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/rootset/lib/clock"
)

// DefaultDebounce is the delay between the first event of a burst and
// the callback.
const DefaultDebounce = 50 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce defaults to DefaultDebounce. Negative means no delay.
	Debounce time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Watcher watches directory roots and reports changes per root.
type Watcher struct {
	inner    *fsnotify.Watcher
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	roots   map[string]func()
	pending map[string]*clock.Timer
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// New starts a watcher. Close it to stop the event loop.
func New(options Options) (*Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := options.Clock
	if c == nil {
		c = clock.Real()
	}
	debounce := options.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		inner:    inner,
		debounce: debounce,
		clock:    c,
		logger:   logger,
		roots:    make(map[string]func()),
		pending:  make(map[string]*clock.Timer),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch registers dir and every directory below it. onChange runs
// after events under dir, at most once per debounce window. dir must
// exist.
func (w *Watcher) Watch(dir string, onChange func()) error {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("watch: watcher closed")
	}
	w.roots[dir] = onChange
	w.mu.Unlock()

	if err := w.addRecursive(dir); err != nil {
		w.mu.Lock()
		delete(w.roots, dir)
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watching root", "root", dir)
	return nil
}

// Close stops the watcher. Pending callbacks are cancelled.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for dir, timer := range w.pending {
			if timer != nil {
				timer.Stop()
			}
			delete(w.pending, dir)
		}
		w.mu.Unlock()
		err = w.inner.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("watching %s: %w", path, err)
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.inner.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.inner.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.inner.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	dir, ok := w.owner(event.Name)
	if !ok {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watching new directory failed", "path", event.Name, "error", err)
			}
		}
	}
	w.schedule(dir)
}

// owner returns the registered root containing path. Nested roots
// resolve to the innermost one.
func (w *Watcher) owner(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for dir := range w.roots {
		if (path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))) && len(dir) > len(best) {
			best = dir
		}
	}
	return best, best != ""
}

func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if _, scheduled := w.pending[dir]; scheduled {
		w.mu.Unlock()
		return
	}
	onChange := w.roots[dir]
	if w.debounce < 0 {
		w.mu.Unlock()
		onChange()
		return
	}
	// Reserve the slot before creating the timer; the fake clock may
	// call back synchronously.
	w.pending[dir] = nil
	w.mu.Unlock()

	timer := w.clock.AfterFunc(w.debounce, func() { w.fire(dir) })

	w.mu.Lock()
	if _, stillPending := w.pending[dir]; stillPending {
		w.pending[dir] = timer
	}
	w.mu.Unlock()
}

func (w *Watcher) fire(dir string) {
	w.mu.Lock()
	delete(w.pending, dir)
	onChange, ok := w.roots[dir]
	closed := w.closed
	w.mu.Unlock()
	if ok && !closed {
		onChange()
	}
}
