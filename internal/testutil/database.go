package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ndewijer/custody-ingest/internal/database"
	"github.com/ndewijer/custody-ingest/internal/logging"
)

// SetupTestDB creates an in-memory SQLite database with every migration applied.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := database.Migrate(context.Background(), db, logging.Nop()); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	//#nosec G202 -- Safe: table names come from test code only
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s rows: %v", table, err)
	}
	return n
}

// CountLatest returns how many records of (bankID, uniqueKey) carry the latest flag.
func CountLatest(t *testing.T, db *sql.DB, bankID, uniqueKey string) int {
	t.Helper()

	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM positions WHERE bank_id = ? AND unique_key = ? AND is_latest = 1`,
		bankID, uniqueKey,
	).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count latest positions: %v", err)
	}
	return n
}
