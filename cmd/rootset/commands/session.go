// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/archive"
	"github.com/bureau-foundation/rootset/lib/cachepool"
	"github.com/bureau-foundation/rootset/lib/config"
	"github.com/bureau-foundation/rootset/lib/indexer"
	"github.com/bureau-foundation/rootset/lib/persistindex"
	"github.com/bureau-foundation/rootset/lib/resolver"
	"github.com/bureau-foundation/rootset/lib/root"
)

// sessionFlags are the flags shared by every command that builds a
// resolver.
type sessionFlags struct {
	configPath        string
	roots             []string
	bootstrap         string
	noCache           bool
	noPersistentIndex bool
	lockRootsOpen     bool
	allowUnescaped    bool
	preload           bool
	verbose           bool
}

func (f *sessionFlags) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.configPath, "config", "c", "", "configuration file (default $"+config.EnvConfig+")")
	flagSet.StringArrayVarP(&f.roots, "root", "r", nil, "root directory or archive, in priority order; replaces configured roots")
	flagSet.StringVar(&f.bootstrap, "bootstrap", "", "directory or archive consulted after every root")
	flagSet.BoolVar(&f.noCache, "no-cache", false, "probe roots directly instead of indexing them")
	flagSet.BoolVar(&f.noPersistentIndex, "no-persistent-index", false, "do not load or save on-disk indexes")
	flagSet.BoolVar(&f.lockRootsOpen, "lock-roots-open", false, "keep archive roots open for the whole run")
	flagSet.BoolVar(&f.allowUnescaped, "allow-unescaped-names", false, "accept names containing whitespace or escape characters")
	flagSet.BoolVar(&f.preload, "preload", false, "index every root before the first lookup")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log debug records")
}

// load reads the configuration file and applies the flags on top.
func (f *sessionFlags) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case f.configPath != "":
		cfg, err = config.LoadFile(f.configPath)
	case os.Getenv(config.EnvConfig) != "" || len(f.roots) == 0:
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.Expand()
	}
	if err != nil {
		return nil, err
	}

	if len(f.roots) > 0 {
		cfg.Roots = make([]config.RootConfig, len(f.roots))
		for i, location := range f.roots {
			cfg.Roots[i] = config.RootConfig{Location: location}
		}
	}
	if f.bootstrap != "" {
		cfg.Bootstrap = f.bootstrap
	}
	if f.noCache {
		cfg.UseCache = false
		cfg.UseCachePool = false
		cfg.PersistentIndex.Enabled = false
	}
	if f.noPersistentIndex {
		cfg.PersistentIndex.Enabled = false
	}
	if f.lockRootsOpen {
		cfg.LockRootsOpen = true
	}
	if f.allowUnescaped {
		cfg.AllowUnescapedNames = true
	}
	if f.preload {
		cfg.Preload = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Roots) == 0 && cfg.Bootstrap == "" {
		return nil, errors.New("no roots configured; add roots to the configuration file or pass --root")
	}
	return cfg, nil
}

func (f *sessionFlags) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return cli.NewCommandLogger(stderr, level)
}

// session owns a resolver and everything it was built from.
type session struct {
	config   *config.Config
	resolver *resolver.Resolver
	store    persistindex.Store
	logger   *slog.Logger

	closers []io.Closer
}

// open loads the configuration and builds the resolver.
func (f *sessionFlags) open(stderr io.Writer) (*session, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	return openSession(cfg, f.logger(stderr))
}

func openSession(cfg *config.Config, logger *slog.Logger) (_ *session, err error) {
	s := &session{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.closeResources()
		}
	}()

	interval, err := cfg.Revalidate()
	if err != nil {
		return nil, err
	}

	resolverConfig := resolver.Config{
		LockRootsOpen:       cfg.LockRootsOpen,
		UseCache:            cfg.UseCache,
		CachingCondition:    uncachedCondition(cfg),
		AllowUnescapedNames: cfg.AllowUnescapedNames,
		Preload:             cfg.Preload,
		NegativeCacheSize:   cfg.NegativeCacheSize,
		RevalidateInterval:  interval,
		Logger:              logger,
	}
	for _, r := range cfg.Roots {
		resolverConfig.Roots = append(resolverConfig.Roots, resolver.RootSpec{
			Location:             r.Location,
			ExcludeFromBootstrap: r.ExcludeFromBootstrap,
		})
	}

	if cfg.UseCache && cfg.UseCachePool {
		resolverConfig.CachePool = cachepool.New(cachepool.Options{Logger: logger})
	}

	if cfg.UseCache && cfg.PersistentIndex.Enabled {
		store, err := s.openStore(cfg.PersistentIndex)
		if err != nil {
			return nil, err
		}
		s.store = store
		resolverConfig.UsePersistentIndex = true
		resolverConfig.IndexStore = store
	}

	if cfg.Bootstrap != "" {
		bootstrap, err := s.openBootstrap(cfg.Bootstrap)
		if err != nil {
			return nil, err
		}
		resolverConfig.AllowBootstrapResources = true
		resolverConfig.Bootstrap = bootstrap
	}

	s.resolver, err = resolver.New(resolverConfig)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// uncachedCondition forbids caching for roots under the configured
// uncached prefixes.
func uncachedCondition(cfg *config.Config) indexer.CachingCondition {
	if len(cfg.UncachedRoots) == 0 {
		return nil
	}
	absolute := *cfg
	absolute.UncachedRoots = make([]string, len(cfg.UncachedRoots))
	for i, prefix := range cfg.UncachedRoots {
		if resolved, err := filepath.Abs(prefix); err == nil {
			prefix = resolved
		}
		if resolved, err := filepath.EvalSymlinks(prefix); err == nil {
			prefix = resolved
		}
		absolute.UncachedRoots[i] = prefix
	}
	return indexer.CachingConditionFunc(func(r *root.Root) bool {
		return !absolute.IsUncached(r.Location())
	})
}

func (s *session) openStore(options config.PersistentIndexConfig) (persistindex.Store, error) {
	switch options.Backend {
	case config.BackendSQLite:
		store, err := persistindex.OpenSQLiteStore(options.Path, s.logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		return store, nil
	default:
		return persistindex.NewFileStore(options.Path, s.logger)
	}
}

func (s *session) openBootstrap(location string) (fs.FS, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if info.IsDir() {
		return os.DirFS(location), nil
	}
	bootstrap, err := archive.Open(location)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	s.closers = append(s.closers, bootstrap)
	return bootstrap, nil
}

// Close flushes and closes the resolver, then the store and bootstrap.
func (s *session) Close() error {
	var err error
	if s.resolver != nil {
		err = s.resolver.Close()
	}
	return errors.Join(err, s.closeResources())
}

func (s *session) closeResources() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
