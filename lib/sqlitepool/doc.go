// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases used as local caches.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies one set
// of pragmas to every connection:
//
//   - journal_mode=WAL so readers never block the single writer.
//   - synchronous=NORMAL: a committed transaction survives a process
//     crash but not power loss. Everything stored through this package
//     can be rebuilt from the storage it describes.
//   - busy_timeout=5000 to wait out a concurrent writer in another
//     process instead of failing with SQLITE_BUSY.
//   - cache_size=-8192 and temp_store=MEMORY.
//
// A [Config.Schema] script runs on every new connection, so callers
// write it with CREATE ... IF NOT EXISTS. [Pool.Write] and [Pool.Read]
// take a connection, run a function inside a transaction and return
// the connection, which covers every access pattern of the index
// store without exposing Take/Put pairs to callers.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(cacheDir, "index.db"),
//	    Schema: schema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.Write(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM records WHERE root = ?",
//	        &sqlitex.ExecOptions{Args: []any{identity}})
//	})
package sqlitepool
