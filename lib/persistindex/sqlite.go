// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persistindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/rootset/lib/codec"
	"github.com/bureau-foundation/rootset/lib/root"
	"github.com/bureau-foundation/rootset/lib/sqlitepool"
)

// sqliteSchemaVersion is stored per root row; rows written by another
// version are ignored like version-mismatched files.
const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS roots (
	identity TEXT PRIMARY KEY,
	version  INTEGER NOT NULL,
	stamp    INTEGER NOT NULL,
	dirs     BLOB NOT NULL,
	saved_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	identity TEXT NOT NULL,
	name     TEXT NOT NULL,
	ordinal  INTEGER NOT NULL,
	stamp    INTEGER NOT NULL,
	PRIMARY KEY (identity, name)
) WITHOUT ROWID;
`

// SQLiteStore keeps every snapshot in one SQLite database.
type SQLiteStore struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: sqliteSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{pool: pool, logger: logger}, nil
}

// Load reads the snapshot for identity.
func (s *SQLiteStore) Load(identity root.Identity) (*Snapshot, error) {
	var snapshot *Snapshot
	var decodeErr error
	err := s.pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		var version int64
		var found bool
		loaded := &Snapshot{}
		err := sqlitex.Execute(conn,
			"SELECT version, stamp, dirs, saved_at FROM roots WHERE identity = ?",
			&sqlitex.ExecOptions{
				Args: []any{string(identity)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					version = stmt.ColumnInt64(0)
					loaded.Stamp = root.Stamp(stmt.ColumnInt64(1))
					dirs := make([]byte, stmt.ColumnLen(2))
					stmt.ColumnBytes(2, dirs)
					if err := codec.Unmarshal(dirs, &loaded.Dirs); err != nil {
						decodeErr = err
					}
					loaded.SavedAt = time.Unix(0, stmt.ColumnInt64(3)).UTC()
					return nil
				},
			})
		if err != nil {
			return err
		}
		if !found || decodeErr != nil {
			return nil
		}
		if version != sqliteSchemaVersion {
			s.logger.Debug("ignoring index row written by another format version",
				"root", identity,
				"version", version,
			)
			return nil
		}

		err = sqlitex.Execute(conn,
			"SELECT name, ordinal, stamp FROM records WHERE identity = ? ORDER BY name",
			&sqlitex.ExecOptions{
				Args: []any{string(identity)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					loaded.Records = append(loaded.Records, Record{
						Name:    stmt.ColumnText(0),
						Ordinal: stmt.ColumnInt(1),
						Stamp:   root.Stamp(stmt.ColumnInt64(2)),
					})
					return nil
				},
			})
		if err != nil {
			return err
		}
		snapshot = loaded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading index for %s: %w", identity, err)
	}
	if decodeErr != nil {
		return nil, &CorruptError{Identity: identity, Reason: "decoding directory list", Err: decodeErr}
	}
	return snapshot, nil
}

// Save replaces the snapshot for identity in one transaction.
func (s *SQLiteStore) Save(identity root.Identity, snapshot *Snapshot) error {
	dirs, err := codec.Marshal(snapshot.Dirs)
	if err != nil {
		return fmt.Errorf("encoding directory list for %s: %w", identity, err)
	}

	err = s.pool.Write(context.Background(), func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM records WHERE identity = ?",
			&sqlitex.ExecOptions{Args: []any{string(identity)}}); err != nil {
			return err
		}
		// Stamps are stored as the signed reinterpretation of the
		// uint64; SQLite integers are 64-bit signed.
		if err := sqlitex.Execute(conn,
			`INSERT INTO roots (identity, version, stamp, dirs, saved_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (identity) DO UPDATE SET
			   version = excluded.version, stamp = excluded.stamp,
			   dirs = excluded.dirs, saved_at = excluded.saved_at`,
			&sqlitex.ExecOptions{Args: []any{
				string(identity),
				sqliteSchemaVersion,
				int64(snapshot.Stamp),
				dirs,
				snapshot.SavedAt.UnixNano(),
			}}); err != nil {
			return err
		}
		for _, record := range snapshot.Records {
			if err := sqlitex.Execute(conn,
				"INSERT INTO records (identity, name, ordinal, stamp) VALUES (?, ?, ?, ?)",
				&sqlitex.ExecOptions{Args: []any{
					string(identity),
					record.Name,
					record.Ordinal,
					int64(record.Stamp),
				}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving index for %s: %w", identity, err)
	}

	s.logger.Debug("index saved",
		"root", identity,
		"database", s.pool.Path(),
		"records", len(snapshot.Records),
	)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
