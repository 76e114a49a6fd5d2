// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

// usernameRe enforces a conservative username pattern.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// Username validates a username string for length and allowed characters.
func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

// DisplayName validates and normalizes a user-facing file or folder name.
// Names are display-only (never used as storage paths), so only emptiness
// and length are checked.
func DisplayName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("name cannot be empty")
	}
	if len(s) > 255 {
		return "", errors.New("name is too long")
	}
	return s, nil
}
