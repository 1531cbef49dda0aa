package database

import (
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}
