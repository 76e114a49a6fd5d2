package db

import (
	"context"
	"testing"
)

// Reopening an existing database must rerun the migration pass without
// reapplying anything: one ledger row per migration file, and the schema
// still usable afterwards.
func TestMigrateIdempotent(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/reopen.db"

	d, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := d.CreateUser(ctx, "mallory", "x", 1000); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	d, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer d.Close()

	var ledgerRows int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&ledgerRows); err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if ledgerRows != 1 {
		t.Fatalf("ledger rows=%d, want 1", ledgerRows)
	}

	u, ok, err := d.GetUserByUsername(ctx, "mallory")
	if err != nil || !ok {
		t.Fatalf("user lost across reopen: ok=%v err=%v", ok, err)
	}
	if u.StorageLimit != 1000 {
		t.Fatalf("storage_limit=%d, want 1000", u.StorageLimit)
	}
}
