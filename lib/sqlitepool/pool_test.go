// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/rootset/lib/sqlitepool"
)

const testSchema = `CREATE TABLE IF NOT EXISTS numbers (value INTEGER NOT NULL);`

func openTestPool(t *testing.T) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "nested", "test.db"),
		PoolSize: 4,
		Schema:   testSchema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func sumNumbers(t *testing.T, pool *sqlitepool.Pool) int64 {
	t.Helper()
	var sum int64
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM numbers", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sum += stmt.ColumnInt64(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return sum
}

func TestPragmasApplied(t *testing.T) {
	pool := openTestPool(t)

	var journalMode string
	var synchronous int
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		}); err != nil {
			return err
		}
		return sqlitex.Execute(conn, "PRAGMA synchronous", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				synchronous = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}
	if synchronous != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", synchronous)
	}
}

func TestWriteCommits(t *testing.T) {
	pool := openTestPool(t)

	err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, "INSERT INTO numbers (value) VALUES (1), (2), (3);", nil)
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if sum := sumNumbers(t, pool); sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}
}

func TestWriteRollsBackOnError(t *testing.T) {
	pool := openTestPool(t)
	failure := errors.New("abandon")

	err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
		if err := sqlitex.ExecuteScript(conn, "INSERT INTO numbers (value) VALUES (10);", nil); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Write err = %v, want %v", err, failure)
	}
	if sum := sumNumbers(t, pool); sum != 0 {
		t.Errorf("sum = %d after rollback, want 0", sum)
	}
}

func TestConcurrentWriters(t *testing.T) {
	pool := openTestPool(t)

	const goroutineCount = 8
	var waitGroup sync.WaitGroup
	errs := make(chan error, goroutineCount)
	for i := range goroutineCount {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			err := pool.Write(context.Background(), func(conn *sqlite.Conn) error {
				return sqlitex.Execute(conn, "INSERT INTO numbers (value) VALUES (?)",
					&sqlitex.ExecOptions{Args: []any{i + 1}})
			})
			if err != nil {
				errs <- fmt.Errorf("writer %d: %w", i, err)
			}
		}()
	}
	waitGroup.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if sum := sumNumbers(t, pool); sum != 36 {
		t.Errorf("sum = %d, want 36", sum)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}
