package db

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// isRetryableErr identifies transient SQLite lock errors.
// modernc/sqlite surfaces them as strings containing these markers.
func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "database is locked") ||
		strings.Contains(s, "sqlite_busy") ||
		strings.Contains(s, "busy") ||
		strings.Contains(s, "locked")
}

// withTx runs fn inside a transaction, retrying on busy/locked errors.
// Domain errors (ErrNotFound etc.) pass through untouched.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		err = d.runTx(ctx, fn)
		if err == nil || !isRetryableErr(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (d *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
