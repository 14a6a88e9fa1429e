// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	// Path is the database file. Parent directories are created. Use
	// ":memory:" only with PoolSize 1; every in-memory connection is
	// a separate database.
	Path string

	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	// Schema is executed as a script on every new connection.
	Schema string

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Pool is a fixed-size set of SQLite connections. It is safe for
// concurrent use; the connections it lends are not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool. Connections are opened lazily on first use,
// so a bad path or schema surfaces from the first Read or Write.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlitepool: creating directory for %s: %w", cfg.Path, err)
		}
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, cfg.Schema)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Debug("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)
	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Path returns the database file path.
func (p *Pool) Path() string { return p.path }

// Write runs fn inside an IMMEDIATE transaction, which takes the write
// lock up front. The transaction commits if fn returns nil and rolls
// back otherwise.
func (p *Pool) Write(ctx context.Context, fn func(*sqlite.Conn) error) (err error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitepool: take: %w", err)
	}
	defer p.inner.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitepool: begin: %w", err)
	}
	defer endFn(&err)
	return fn(conn)
}

// Read runs fn inside a deferred transaction so that every statement
// sees one consistent snapshot.
func (p *Pool) Read(ctx context.Context, fn func(*sqlite.Conn) error) (err error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitepool: take: %w", err)
	}
	defer p.inner.Put(conn)

	endFn := sqlitex.Transaction(conn)
	defer endFn(&err)
	return fn(conn)
}

// Close blocks until every borrowed connection is returned, then
// closes them all.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close failed", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Debug("sqlite pool closed", "path", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn, schema string) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	if schema != "" {
		if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
			return fmt.Errorf("sqlitepool: applying schema: %w", err)
		}
	}
	return nil
}
