package db

import (
	"context"
	"database/sql"
	"errors"
)

// CreateFolder inserts a folder, optionally under a parent owned by the
// same user. Duplicate sibling names are allowed.
func (d *DB) CreateFolder(ctx context.Context, userID int64, name string, parentID *int64) (int64, error) {
	if userID <= 0 || name == "" {
		return 0, errors.New("user and name are required")
	}

	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if parentID != nil {
			if err := folderOwnedTx(ctx, tx, *parentID, userID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO folders(user_id, parent_id, name, created_at) VALUES(?, ?, ?, ?)
`, userID, nullableID(parentID), name, nowUnix())
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

// GetFolderForUser looks up a folder owned by the given user.
func (d *DB) GetFolderForUser(ctx context.Context, folderID, userID int64) (*Folder, bool, error) {
	var f Folder
	var parentID sql.NullInt64
	err := d.sql.QueryRowContext(ctx, `
SELECT id, user_id, parent_id, name, created_at FROM folders WHERE id=? AND user_id=?
`, folderID, userID).Scan(&f.ID, &f.UserID, &parentID, &f.Name, &f.CreatedAt)
	if err == nil {
		if parentID.Valid {
			f.ParentID = &parentID.Int64
		}
		return &f, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// RenameFolder overwrites a folder's display name.
func (d *DB) RenameFolder(ctx context.Context, folderID, userID int64, name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	res, err := d.sql.ExecContext(ctx, `
UPDATE folders SET name=? WHERE id=? AND user_id=?
`, name, folderID, userID)
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

// CollectFolderFiles returns every file transitively contained in a folder,
// walking the subtree with a recursive CTE. Row deletion cascades through
// foreign keys, but blob removal and quota release need the explicit list.
func (d *DB) CollectFolderFiles(ctx context.Context, folderID, userID int64) ([]File, error) {
	if _, ok, err := d.GetFolderForUser(ctx, folderID, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}

	rows, err := d.sql.QueryContext(ctx, `
WITH RECURSIVE subtree(id) AS (
  SELECT id FROM folders WHERE id=? AND user_id=?
  UNION ALL
  SELECT f.id FROM folders f JOIN subtree s ON f.parent_id = s.id
)
SELECT `+fileColumns+` FROM files WHERE folder_id IN (SELECT id FROM subtree)
ORDER BY id ASC
`, folderID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// DeleteFolder removes the folder row (descendants and their files cascade)
// and releases the given byte total in one transaction. The caller computes
// releaseBytes from CollectFolderFiles and removes the blobs.
func (d *DB) DeleteFolder(ctx context.Context, folderID, userID, releaseBytes int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM folders WHERE id=? AND user_id=?
`, folderID, userID)
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
		if releaseBytes > 0 {
			return releaseStorage(ctx, tx, userID, releaseBytes)
		}
		return nil
	})
}

// folderOwnedTx verifies a folder belongs to a user inside a transaction.
func folderOwnedTx(ctx context.Context, tx *sql.Tx, folderID, userID int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `
SELECT 1 FROM folders WHERE id=? AND user_id=?
`, folderID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}
