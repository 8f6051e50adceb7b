package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/matiasleandrokruk/codeassist/internal/infra/sqlite"
)

func TestNewDB_OpenAndClose(t *testing.T) {
	t.Parallel()

	path := tempDBPath(t)
	db, err := sqlite.NewDB(path)
	if err != nil {
		t.Fatalf("NewDB(%q) error = %v; want nil", path, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("db.Close() error = %v; want nil", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestNewDB_WALMode(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode scan error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q; want %q", mode, "wal")
	}
}

func TestNewDB_ForeignKeysEnabled(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys scan error = %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("foreign_keys = %d; want 1", fkEnabled)
	}
}

func TestNewDB_InMemory_SingleConnection(t *testing.T) {
	t.Parallel()

	db, err := sqlite.NewDB(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d; want 1 for in-memory db", got)
	}
}

func TestNewDB_InvalidDirectory(t *testing.T) {
	t.Parallel()

	_, err := sqlite.NewDB(filepath.Join(t.TempDir(), "missing", "db.sqlite"))
	if err == nil {
		t.Fatal("NewDB with missing parent directory should fail")
	}
}

func TestOpen_RunsMigrations(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	assertTableExists(t, db, "conversation_session")
	assertTableExists(t, db, "conversation_turn")
}

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(tempDBPath(t))
	if err != nil {
		t.Fatalf("sqlite.NewDB error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// tempDBPath returns a unique temp file path for a test DB (auto-cleaned).
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.sqlite")
}
