// Package sqlite provides the SQLite connection factory and schema migrations
// backing the persistent conversation memory.
// Uses modernc.org/sqlite — a pure-Go SQLite driver (no CGO required).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// NewDB opens (or creates) a SQLite database at path with:
//   - WAL journal mode (concurrent readers while a session is appended to)
//   - foreign keys ON (turn rows cascade with their session)
//   - 5-second busy timeout
//   - synchronous=NORMAL
//
// The parent directory must already exist.
func NewDB(path string) (*sql.DB, error) {
	if path != MemoryPath {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("sqlite.NewDB: parent directory %q does not exist", dir)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewDB: open %q: %w", path, err)
	}

	// Every connection to ":memory:" is a distinct database, so in-memory
	// handles are pinned to a single connection.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.NewDB: ping %q: %w", path, err)
	}

	return db, nil
}

// Open is NewDB followed by MigrateUp.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
