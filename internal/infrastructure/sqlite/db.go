// Package sqlite persists model documents in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/store"
)

// BusyTimeoutMillis is how long a connection waits on a locked database.
const BusyTimeoutMillis = 5000

// DB owns the connection pool and hands out repositories.
type DB struct {
	path string
	conn *sql.DB
}

// NewDB opens the database at path, creating its directory (0700) and file
// when missing. An existing file is copied to path+".bak" before pending
// migrations run.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := backup(path); err != nil {
		return nil, fmt.Errorf("failed to back up database: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)",
		path, BusyTimeoutMillis)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Debug(log.CatDB, "database ready", "path", path)
	return &DB{path: path, conn: conn}, nil
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

// Connection returns the underlying pool.
func (db *DB) Connection() *sql.DB { return db.conn }

// Repository is a store.ModelRepository that also tracks save times.
type Repository interface {
	store.ModelRepository
	Timestamps(ctx context.Context, kind, id string) (created, updated time.Time, err error)
}

// ModelRepository returns a repository backed by this database.
func (db *DB) ModelRepository() Repository {
	return newModelRepository(db.conn)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// backup copies an existing, non-empty database file aside.
func backup(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	src, err := os.Open(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".bak", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
