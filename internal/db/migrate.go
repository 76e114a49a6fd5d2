package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date, applying pending migration files
// in lexical order. The ledger id is the file name plus a content hash,
// so an edited migration counts as a new one instead of being skipped.
func Migrate(ctx context.Context, s *sql.DB) error {
	if _, err := s.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id TEXT PRIMARY KEY,
  applied_at INTEGER NOT NULL
);
`); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := applyOnce(ctx, s, name); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

// applyOnce runs a single migration file unless its ledger row already
// exists. The ledger insert and the schema change share one transaction,
// so a migration can never be recorded without having fully run.
func applyOnce(ctx context.Context, s *sql.DB, name string) error {
	body, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(body)
	id := name + ":" + hex.EncodeToString(sum[:])

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO schema_migrations(id, applied_at) VALUES(?, ?)
`, id, nowUnix())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already applied.
		return nil
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	return tx.Commit()
}
