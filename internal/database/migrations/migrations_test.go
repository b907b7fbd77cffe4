package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"records", "batches", "batch_commands", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v != 2 {
		t.Errorf("LatestVersion() = %d, want 2", v)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A command row must belong to an existing batch.
	_, err := db.Exec(`
		INSERT INTO batch_commands (batch_id, position, kind, spec)
		VALUES ('no-such-batch', 0, 'move_file', '{}')
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_BatchCommandsCascade(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO batches (id, created_at) VALUES ('b-1', datetime('now'))"); err != nil {
		t.Fatalf("Failed to insert batch: %v", err)
	}
	if _, err := db.Exec("INSERT INTO batch_commands (batch_id, position, kind, spec) VALUES ('b-1', 0, 'move_file', '{}')"); err != nil {
		t.Fatalf("Failed to insert command: %v", err)
	}
	if _, err := db.Exec("DELETE FROM batches WHERE id = 'b-1'"); err != nil {
		t.Fatalf("Failed to delete batch: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM batch_commands").Scan(&n); err != nil {
		t.Fatalf("counting commands: %v", err)
	}
	if n != 0 {
		t.Errorf("batch_commands rows = %d, want 0 after cascade", n)
	}
}

func TestSchema_BatchIDUnique(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO batches (id, created_at) VALUES ('b-1', datetime('now'))"); err != nil {
		t.Fatalf("Failed to insert first batch: %v", err)
	}
	if _, err := db.Exec("INSERT INTO batches (id, created_at) VALUES ('b-1', datetime('now'))"); err == nil {
		t.Error("Expected unique constraint violation for duplicate batch id, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing. A single
// connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
