package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// NewToken returns nbytes of randomness as an unpadded base64url string.
// Used for session tokens; share tokens are minted separately as UUIDs.
func NewToken(nbytes int) (string, error) {
	if nbytes < 16 {
		return "", errors.New("token size too small")
	}
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
