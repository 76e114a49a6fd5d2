package db

import (
	"context"
	"database/sql"
	"errors"
)

const fileColumns = `id, user_id, folder_id, name, storage_key, size, mime_type, created_at`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var f File
	var folderID sql.NullInt64
	err := row.Scan(&f.ID, &f.UserID, &folderID, &f.Name, &f.StorageKey, &f.Size, &f.MimeType, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if folderID.Valid {
		f.FolderID = &folderID.Int64
	}
	return &f, nil
}

// CreateFile reserves quota and inserts the file row in one transaction.
// Returns ErrQuotaExceeded without inserting when the reservation fails,
// and ErrNotFound when the destination folder is absent or foreign.
// On success f.ID and f.CreatedAt are populated.
func (d *DB) CreateFile(ctx context.Context, f *File) error {
	if f == nil || f.UserID <= 0 {
		return errors.New("invalid file")
	}
	if f.Name == "" || f.StorageKey == "" {
		return errors.New("name and storage key are required")
	}
	if f.Size < 0 {
		return errors.New("size cannot be negative")
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		if f.FolderID != nil {
			if err := folderOwnedTx(ctx, tx, *f.FolderID, f.UserID); err != nil {
				return err
			}
		}
		if err := reserveStorage(ctx, tx, f.UserID, f.Size); err != nil {
			return err
		}
		now := nowUnix()
		res, err := tx.ExecContext(ctx, `
INSERT INTO files(user_id, folder_id, name, storage_key, size, mime_type, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
`, f.UserID, nullableID(f.FolderID), f.Name, f.StorageKey, f.Size, f.MimeType, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		f.ID = id
		f.CreatedAt = now
		return nil
	})
}

// GetFileForUser looks up a file owned by the given user.
func (d *DB) GetFileForUser(ctx context.Context, fileID, userID int64) (*File, bool, error) {
	row := d.sql.QueryRowContext(ctx, `
SELECT `+fileColumns+` FROM files WHERE id=? AND user_id=?
`, fileID, userID)
	f, err := scanFile(row)
	if err == nil {
		return f, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// RenameFile overwrites a file's display name. The caller validates the
// name; here only ownership is enforced.
func (d *DB) RenameFile(ctx context.Context, fileID, userID int64, name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	res, err := d.sql.ExecContext(ctx, `
UPDATE files SET name=? WHERE id=? AND user_id=?
`, name, fileID, userID)
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

// MoveFile reassigns a file to a folder. Both the file and the destination
// must belong to the user; anything else reads as ErrNotFound.
func (d *DB) MoveFile(ctx context.Context, fileID, folderID, userID int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := folderOwnedTx(ctx, tx, folderID, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE files SET folder_id=? WHERE id=? AND user_id=?
`, folderID, fileID, userID)
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
	})
}

// DeleteFile removes the row and releases the recorded size in one
// transaction. The caller removes the blob first; see httpapi.
func (d *DB) DeleteFile(ctx context.Context, fileID, userID, size int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM files WHERE id=? AND user_id=?
`, fileID, userID)
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
		return releaseStorage(ctx, tx, userID, size)
	})
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
