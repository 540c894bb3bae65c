// Package db provides the embedded SQLite database behind the local store.
//
// The database runs in embedded mode through the ncruces WebAssembly build of
// SQLite, with WAL journaling so observers can read while a write is in
// progress. Writes are funneled through a single mutex; SQLite only allows
// one writer and waiting on the mutex is cheaper than retrying SQLITE_BUSY.
//
// Architecture:
//   - Database file: ~/.goalcoach/goalcoach.db (see internal/config)
//   - WAL mode: concurrent readers during writes
//   - Schema: goals, journal_entries, places (goose migrations)
//   - Indexes: owner id plus each kind's sort column
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DriverName is the database/sql driver registered by ncruces/go-sqlite3.
const DriverName = "sqlite3"

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sqlx.DB
	path string

	// writeMu serializes writers in front of SQLite.
	writeMu sync.Mutex
}

// Open creates a database connection at the specified path.
//
// The parent directory and the database file are created when missing.
// Per-connection pragmas are passed in the DSN so every pooled connection
// gets them. The caller MUST call Close() when done and Migrate() before
// first use.
//
// Example:
//
//	db, err := db.Open("/home/me/.goalcoach/goalcoach.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)", path)
	conn, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read journal mode: %w", err)
	}
	if mode != "wal" {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: journal_mode is %q", mode)
	}

	return &DB{conn: conn, path: path}, nil
}

// FromConn wraps an existing connection. Migrations are not run. Used to
// put the store in front of a mocked or shared *sql.DB.
func FromConn(conn *sql.DB) *DB {
	return &DB{conn: sqlx.NewDb(conn, DriverName)}
}

// X returns the sqlx handle for reads.
func (db *DB) X() *sqlx.DB {
	return db.conn
}

// Path returns the database file path, or "" for wrapped connections.
func (db *DB) Path() string {
	return db.path
}

// Write runs fn in a transaction while holding the write lock. The
// transaction is committed when fn returns nil and rolled back otherwise.
func (db *DB) Write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if db.path != "" {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			log.Printf("Warning: failed to checkpoint WAL: %v", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// MillisToTime converts a stored epoch-millisecond value.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToMillis converts a time for storage.
func TimeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// TimeToNullMillis converts an optional time for storage.
func TimeToNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// NullMillisToTime converts an optional stored time.
func NullMillisToTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := MillisToTime(n.Int64)
	return &t
}
