package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreateSession inserts a new session token with expiration.
func (d *DB) CreateSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	if token == "" || userID <= 0 {
		return errors.New("invalid session")
	}
	now := nowUnix()
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO sessions(token, user_id, created_at, expires_at)
VALUES(?, ?, ?, ?)
`, token, userID, now, now+int64(ttl.Seconds()))
	return err
}

// GetSession looks up a session by token.
func (d *DB) GetSession(ctx context.Context, token string) (*Session, bool, error) {
	var s Session
	err := d.sql.QueryRowContext(ctx, `
SELECT token, user_id, created_at, expires_at FROM sessions WHERE token=?
`, token).Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err == nil {
		return &s, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// DeleteSession removes a session by token.
func (d *DB) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token is required")
	}
	_, err := d.sql.ExecContext(ctx, `DELETE FROM sessions WHERE token=?`, token)
	return err
}

// DeleteExpiredSessions deletes sessions that have expired.
func (d *DB) DeleteExpiredSessions(ctx context.Context, nowUnix int64) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, nowUnix)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
