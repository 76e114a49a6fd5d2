package db

import (
	"context"
	"database/sql"
)

// ListOptions scopes and orders a listing. A nil FolderID means the user's
// root level. SortBy accepts name (original_filename as an alias),
// created_at, and size; anything else keeps insertion order rather than
// erroring. SortOrder defaults to descending.
type ListOptions struct {
	FolderID  *int64
	Query     string
	SortBy    string
	SortOrder string
}

// fileOrderColumn maps a requested sort key onto a files column.
// Empty means no recognized key.
func fileOrderColumn(sortBy string) string {
	switch sortBy {
	case "name", "original_filename":
		return "name"
	case "created_at":
		return "created_at"
	case "size":
		return "size"
	}
	return ""
}

func orderDirection(sortOrder string) string {
	if sortOrder == "asc" {
		return "ASC"
	}
	return "DESC"
}

// ListFiles returns the files directly in the scope, filtered by a
// case-insensitive substring match when Query is non-empty. The caller
// validates folder ownership before listing.
func (d *DB) ListFiles(ctx context.Context, userID int64, opt ListOptions) ([]File, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE user_id=?`
	args := []any{userID}

	if opt.FolderID != nil {
		q += ` AND folder_id=?`
		args = append(args, *opt.FolderID)
	} else {
		q += ` AND folder_id IS NULL`
	}
	if opt.Query != "" {
		q += ` AND instr(lower(name), lower(?)) > 0`
		args = append(args, opt.Query)
	}
	if col := fileOrderColumn(opt.SortBy); col != "" {
		q += ` ORDER BY ` + col + ` ` + orderDirection(opt.SortOrder)
	}

	rows, err := d.sql.QueryContext(ctx, q, args...)
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

// ListFolders returns the subfolders of the scope. Folders carry no size,
// so a recognized sort key always orders them by name.
func (d *DB) ListFolders(ctx context.Context, userID int64, opt ListOptions) ([]Folder, error) {
	q := `SELECT id, user_id, parent_id, name, created_at FROM folders WHERE user_id=?`
	args := []any{userID}

	if opt.FolderID != nil {
		q += ` AND parent_id=?`
		args = append(args, *opt.FolderID)
	} else {
		q += ` AND parent_id IS NULL`
	}
	if opt.Query != "" {
		q += ` AND instr(lower(name), lower(?)) > 0`
		args = append(args, opt.Query)
	}
	if fileOrderColumn(opt.SortBy) != "" {
		q += ` ORDER BY name ` + orderDirection(opt.SortOrder)
	}

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Folder
	for rows.Next() {
		var f Folder
		var parentID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.UserID, &parentID, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		if parentID.Valid {
			p := parentID.Int64
			f.ParentID = &p
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
