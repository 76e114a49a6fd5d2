package db

import (
	"context"
	"database/sql"
	"errors"
)

// CreateUser inserts a new user with the given quota and returns its ID.
func (d *DB) CreateUser(ctx context.Context, username, passHash string, storageLimit int64) (int64, error) {
	if username == "" || passHash == "" {
		return 0, errors.New("username and password hash are required")
	}
	if storageLimit < 0 {
		return 0, errors.New("storage limit cannot be negative")
	}

	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username=?`, username).Scan(&existing)
		if err == nil {
			return ErrUsernameTaken
		}
		if err != sql.ErrNoRows {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO users(username, password_hash, storage_limit, storage_used, created_at)
VALUES(?, ?, ?, 0, ?)
`, username, passHash, storageLimit, nowUnix())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetUserByUsername looks up a user by username.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*User, bool, error) {
	return d.getUser(ctx, `
SELECT id, username, password_hash, storage_limit, storage_used, created_at
FROM users WHERE username=?
`, username)
}

// GetUserByID looks up a user by ID.
func (d *DB) GetUserByID(ctx context.Context, id int64) (*User, bool, error) {
	return d.getUser(ctx, `
SELECT id, username, password_hash, storage_limit, storage_used, created_at
FROM users WHERE id=?
`, id)
}

func (d *DB) getUser(ctx context.Context, query string, arg any) (*User, bool, error) {
	var u User
	err := d.sql.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.PassHash, &u.StorageLimit, &u.StorageUsed, &u.CreatedAt)
	if err == nil {
		return &u, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// SetStorageLimit updates a user's quota ceiling. Existing usage above the
// new limit is left alone; it only blocks further uploads.
func (d *DB) SetStorageLimit(ctx context.Context, userID, limit int64) error {
	if limit < 0 {
		return errors.New("storage limit cannot be negative")
	}
	res, err := d.sql.ExecContext(ctx, `UPDATE users SET storage_limit=? WHERE id=?`, limit, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// reserveStorage atomically claims additional bytes against a user's quota.
// The conditional UPDATE admits a write that lands exactly on the limit and
// rejects anything past it, without a read-modify-write race.
func reserveStorage(ctx context.Context, tx *sql.Tx, userID, add int64) error {
	res, err := tx.ExecContext(ctx, `
UPDATE users SET storage_used = storage_used + ?
WHERE id = ? AND storage_used + ? <= storage_limit
`, add, userID, add)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the user vanished or the quota would be exceeded.
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=?`, userID).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrQuotaExceeded
	}
	return nil
}

// releaseStorage returns bytes to a user's quota, flooring at zero so a
// drifted counter can never go negative.
func releaseStorage(ctx context.Context, tx *sql.Tx, userID, sub int64) error {
	_, err := tx.ExecContext(ctx, `
UPDATE users SET storage_used = MAX(storage_used - ?, 0) WHERE id = ?
`, sub, userID)
	return err
}
