package db

import (
	"testing"
)

// NewTestDB creates a fresh in-memory database with the schema applied.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	t.Cleanup(func() { database.Close() })

	return database
}
