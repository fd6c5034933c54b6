// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/offload/lib/offload"
)

// SQLiteConfig holds the parameters for opening a [SQLite] store.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist. Use
	// ":memory:" only with PoolSize 1: every in-memory connection is
	// a separate database.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4 if
	// zero or negative. SQLite serializes writers regardless; extra
	// connections serve concurrent fetches.
	PoolSize int

	// Logger receives pool lifecycle messages. Nil discards.
	Logger *slog.Logger
}

// SQLite stores payloads as blobs in a single table.
//
// SQLite is safe for concurrent use. Each call takes its own
// connection from the pool.
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var _ offload.Store = (*SQLite)(nil)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS payloads (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	size       INTEGER NOT NULL,
	created_at INTEGER NOT NULL
) WITHOUT ROWID`

// OpenSQLite opens (creating if needed) a payload database. The caller
// must Close the store.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("payloadstore: sqlite Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("payloadstore: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite payload store opened",
		"path", cfg.Path,
		"pool_size", poolSize,
	)
	return &SQLite{pool: pool, logger: logger, path: cfg.Path}, nil
}

// prepareConnection runs once per pooled connection on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteTransient(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("creating payloads table: %w", err)
	}
	return nil
}

func (s *SQLite) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", offload.ErrStoreUnavailable, err)
	}
	return conn, nil
}

// Store implements offload.Store. Existing payloads are left as they
// are.
func (s *SQLite) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	data, key, err := packPayload(payload)
	if err != nil {
		return nil, err
	}

	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO payloads (key, data, size, created_at) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{key, data, len(data), time.Now().UnixMilli()},
		})
	if err != nil {
		return nil, fmt.Errorf("%w: inserting %s: %v", offload.ErrStoreUnavailable, key, err)
	}
	return key, nil
}

// Fetch implements offload.Store.
func (s *SQLite) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	if _, err := parseKey(ref); err != nil {
		return nil, err
	}
	key := ref.(string)

	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var data []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT data FROM payloads WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			// ColumnBytes copies out of SQLite-owned memory.
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: selecting %s: %v", offload.ErrStoreUnavailable, key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", offload.ErrNotFound, key)
	}
	return unpackPayload(key, data)
}

// Delete removes a payload. Deleting an unknown reference is not an
// error.
func (s *SQLite) Delete(ctx context.Context, ref any) error {
	if _, err := parseKey(ref); err != nil {
		return err
	}
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, "DELETE FROM payloads WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{ref},
	}); err != nil {
		return fmt.Errorf("%w: deleting: %v", offload.ErrStoreUnavailable, err)
	}
	return nil
}

// Stats reports the number of stored payloads and their total size.
func (s *SQLite) Stats(ctx context.Context) (count int64, bytes int64, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "SELECT COUNT(*), COALESCE(SUM(size), 0) FROM payloads", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			bytes = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", offload.ErrStoreUnavailable, err)
	}
	return count, bytes, nil
}

// Close closes every connection, blocking until borrowed ones are
// returned.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("sqlite payload store close error",
			"path", s.path,
			"error", err,
		)
		return fmt.Errorf("payloadstore: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite payload store closed", "path", s.path)
	return nil
}
