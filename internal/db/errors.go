package db

import "errors"

var (
	// ErrNotFound covers rows that are absent or not owned by the caller.
	// Ownership failures are indistinguishable from absence on purpose.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is returned when a reservation would push
	// storage_used past storage_limit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUsernameTaken is returned by CreateUser for duplicate usernames.
	ErrUsernameTaken = errors.New("username already taken")
)
