package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/keyforge/keyforge/internal/db"
)

// OpenTestDB opens a fresh sqlite database in a per-test temp dir with all
// migrations applied.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
