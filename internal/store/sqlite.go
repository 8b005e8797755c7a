package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/conneroisu/courseview/internal/errors"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore persists values in a single-table SQLite database so progress
// survives restarts.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "sqlite store requires a path")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.NewStoreError(errors.ErrCodeStoreOpen,
				fmt.Sprintf("cannot create store directory %s", dir), err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreOpen, "cannot open database", err)
	}

	// A single connection keeps writes ordered without extra locking.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.NewStoreError(errors.ErrCodeStoreOpen, "cannot create schema", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Get implements Store. Read errors are reported as a missing key.
func (s *SQLiteStore) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set implements Store.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreWrite,
			fmt.Sprintf("cannot write key %s", key), err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}
