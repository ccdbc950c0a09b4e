// Package sqlite persists servers, tracked repositories, user settings and
// encrypted credentials in SQLite. Run data itself is never persisted; it
// lives in the in-memory run cache.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Pool sizes. SQLite allows one writer at a time, so the writer pool is
// pinned to a single connection to avoid "database is locked" errors.
const (
	maxWriterConns = 1
	maxReaderConns = 4
)

// DB provides dual reader/writer database connections with WAL mode enabled.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the database at dbPath with WAL mode, busy timeout, synchronous
// NORMAL, foreign keys enabled and a 64MB cache, and verifies both pools.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)

	writer, err := openPool(ctx, dsn, maxWriterConns)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(ctx, dsn, maxReaderConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{
		Writer: writer,
		Reader: reader,
		path:   dbPath,
	}, nil
}

func openPool(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Path returns the database file path the DB was opened with.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the reader pool can still reach the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.Reader.PingContext(ctx)
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
