package db

import (
	"context"
	"database/sql"
	"errors"
)

// CreateShareToken binds a fresh token to a file owned by the user.
// Each call mints a new row; earlier tokens stay valid.
func (d *DB) CreateShareToken(ctx context.Context, fileID, userID int64, token string) (int64, error) {
	if token == "" {
		return 0, errors.New("token is required")
	}

	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `
SELECT 1 FROM files WHERE id=? AND user_id=?
`, fileID, userID).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO share_tokens(file_id, token, created_at) VALUES(?, ?, ?)
`, fileID, token, nowUnix())
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

// GetFileByShareToken resolves a token to its file with an exact-match
// lookup on the full token value. No ownership check: a valid token is
// the access grant.
func (d *DB) GetFileByShareToken(ctx context.Context, token string) (*File, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	row := d.sql.QueryRowContext(ctx, `
SELECT f.id, f.user_id, f.folder_id, f.name, f.storage_key, f.size, f.mime_type, f.created_at
FROM share_tokens t JOIN files f ON f.id = t.file_id
WHERE t.token = ?
`, token)
	f, err := scanFile(row)
	if err == nil {
		return f, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// ListShareTokensForFile returns all tokens minted for a file.
func (d *DB) ListShareTokensForFile(ctx context.Context, fileID, userID int64) ([]ShareToken, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT t.id, t.file_id, t.token, t.created_at
FROM share_tokens t JOIN files f ON f.id = t.file_id
WHERE t.file_id=? AND f.user_id=?
ORDER BY t.id ASC
`, fileID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShareToken
	for rows.Next() {
		var t ShareToken
		if err := rows.Scan(&t.ID, &t.FileID, &t.Token, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
