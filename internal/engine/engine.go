// Package engine is the SQLite access layer of the tree codec.
//
// It opens database files through the ncruces/go-sqlite3 database/sql
// driver and pins a single connection, so a whole conversion run sees one
// snapshot (reads) or commits as one transaction (writes). Cell values are
// read through the raw connection to keep SQLite's storage class exactly:
// the database/sql layer would otherwise reinterpret declared DATE or
// BOOLEAN columns.
//
// Example:
//
//	db, err := engine.Open(ctx, "app.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.BeginRead(ctx); err != nil {
//	    return err
//	}
//	defer db.Rollback(ctx)
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB is a single-connection handle on a database file.
type DB struct {
	pool     *sql.DB
	conn     *sql.Conn
	path     string
	readOnly bool
	inTx     bool
}

// Open opens an existing database file read-only.
func Open(ctx context.Context, path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return open(ctx, path, "ro")
}

// OpenReadWrite opens an existing database file for reading and writing.
func OpenReadWrite(ctx context.Context, path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return open(ctx, path, "rw")
}

// Create creates a new, empty database file. It fails if path exists.
func Create(ctx context.Context, path string) (*DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("failed to create database: %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return open(ctx, path, "rwc")
}

func open(ctx context.Context, path, mode string) (*DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	dsn := (&url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     filepath.ToSlash(abs),
		RawQuery: "mode=" + mode,
	}).String()

	pool, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pool.SetMaxOpenConns(1)

	conn, err := pool.Conn(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{pool: pool, conn: conn, path: path, readOnly: mode == "ro"}

	// Set busy timeout to 5 seconds
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close releases the connection. An open transaction is rolled back.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.inTx {
		_ = db.Rollback(context.Background())
	}
	connErr := db.conn.Close()
	poolErr := db.pool.Close()
	db.conn = nil
	if err := errors.Join(connErr, poolErr); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// BeginRead starts a read transaction and takes its snapshot immediately.
func (db *DB) BeginRead(ctx context.Context) error {
	if err := db.exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	db.inTx = true
	// A deferred transaction only takes its snapshot on first read.
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_schema").Scan(&n); err != nil {
		_ = db.Rollback(ctx)
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	return nil
}

// BeginWrite starts a write transaction holding the write lock.
func (db *DB) BeginWrite(ctx context.Context) error {
	if db.readOnly {
		return fmt.Errorf("failed to begin write transaction: database %s is read-only", db.path)
	}
	if err := db.exec(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}
	db.inTx = true
	return nil
}

// Commit commits the open transaction.
func (db *DB) Commit(ctx context.Context) error {
	if !db.inTx {
		return fmt.Errorf("failed to commit: no transaction")
	}
	if err := db.exec(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	db.inTx = false
	return nil
}

// Rollback abandons the open transaction. It is a no-op without one.
func (db *DB) Rollback(ctx context.Context) error {
	if !db.inTx {
		return nil
	}
	db.inTx = false
	if err := db.exec(ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

// Exec runs one or more SQL statements without parameters.
func (db *DB) Exec(ctx context.Context, script string) error {
	if err := db.exec(ctx, script); err != nil {
		return fmt.Errorf("failed to execute %q: %w", abbreviate(script), err)
	}
	return nil
}

func (db *DB) exec(ctx context.Context, script string) error {
	return db.raw(ctx, func(c *sqlite3.Conn) error {
		return c.Exec(script)
	})
}

// raw runs fn on the underlying SQLite connection with ctx wired to
// statement interruption.
func (db *DB) raw(ctx context.Context, fn func(*sqlite3.Conn) error) error {
	if db.conn == nil {
		return fmt.Errorf("database is closed")
	}
	return db.conn.Raw(func(dc any) error {
		c, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		rc := c.Raw()
		old := rc.SetInterrupt(ctx)
		defer rc.SetInterrupt(old)
		return fn(rc)
	})
}

func abbreviate(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
