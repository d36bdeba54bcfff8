// Package db is the durable fix log: an append-only SQLite table of
// serialized fixes, read back in insertion order.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultPath is where the recorder and the rebuild tool look for the log.
const DefaultPath = "data.db"

// Options tunes connection pragmas.
type Options struct {
	// ForeignKeys enables foreign key enforcement. The log has no foreign
	// keys, so it is off unless asked for.
	ForeignKeys bool
}

type DB struct {
	*sql.DB
	path string
}

// NewDB opens the log at path with default options.
func NewDB(path string) (*DB, error) {
	return Open(path, Options{})
}

// Open opens or creates the log at path, applies pragmas and runs pending
// migrations.
func Open(path string, opts Options) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Database-level pragmas persist in the file. auto_vacuum only takes
	// effect before the first table is created.
	pragmas := []string{
		"PRAGMA auto_vacuum=FULL",
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenReadOnly opens an existing log for reading. The file is never
// created, its pragmas are left alone and no migrations run.
func OpenReadOnly(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s read-only: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the file the log was opened from.
func (db *DB) Path() string {
	return db.path
}

// dsn builds a modernc connection string. Connection-level pragmas go in
// the DSN so that every pooled connection gets them.
func dsn(path string, opts Options) string {
	fk := 0
	if opts.ForeignKeys {
		fk = 1
	}
	params := []string{
		"_pragma=busy_timeout(5000)",
		fmt.Sprintf("_pragma=foreign_keys(%d)", fk),
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}
