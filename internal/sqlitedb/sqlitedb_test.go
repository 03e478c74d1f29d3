package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "biddocs.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("expected wal journal mode, got %q", mode)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("expected foreign keys on, got %d", fk)
	}
}

func TestMigrate(t *testing.T) {
	db := OpenMemory(t)
	err := Migrate(context.Background(), db,
		`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY)`,
	)
	if err != nil {
		t.Fatalf("expected idempotent migration, got %v", err)
	}
	if err := Migrate(context.Background(), db, `NOT SQL`); err == nil {
		t.Fatal("expected error for invalid statement")
	}
}
