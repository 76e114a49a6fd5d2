// Package auth implements credential hashing and opaque token minting.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLen:     16,
		KeyLen:      32,
	}
}

// HashPassword returns a PHC-style Argon2id string.
// Format: argon2id$v=19$m=65536,t=3,p=4$<salt_b64>$<hash_b64>
func HashPassword(password string, p Argon2Params) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf(
		"argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		enc.EncodeToString(salt), enc.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the hash with the encoded parameters and
// compares in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}
	p, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parsePHC(s string) (Argon2Params, []byte, []byte, error) {
	var zero Argon2Params
	parts := strings.Split(s, "$")
	if len(parts) != 5 {
		return zero, nil, nil, errors.New("invalid password hash format")
	}
	if parts[0] != "argon2id" {
		return zero, nil, nil, errors.New("unsupported password hash algorithm")
	}
	ver, err := strconv.Atoi(strings.TrimPrefix(parts[1], "v="))
	if !strings.HasPrefix(parts[1], "v=") || err != nil || ver != argon2.Version {
		return zero, nil, nil, errors.New("unsupported argon2 version")
	}

	var p Argon2Params
	for _, kv := range strings.Split(parts[2], ",") {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			return zero, nil, nil, errors.New("invalid argon2 parameters")
		}
		v, err := strconv.ParseUint(pair[1], 10, 32)
		if err != nil {
			return zero, nil, nil, errors.New("invalid argon2 parameters")
		}
		switch pair[0] {
		case "m":
			p.Memory = uint32(v)
		case "t":
			p.Iterations = uint32(v)
		case "p":
			if v > 255 {
				return zero, nil, nil, errors.New("invalid argon2 parallelism")
			}
			p.Parallelism = uint8(v)
		default:
			return zero, nil, nil, errors.New("unknown argon2 parameter")
		}
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[3])
	if err != nil {
		return zero, nil, nil, errors.New("invalid argon2 salt")
	}
	key, err := enc.DecodeString(parts[4])
	if err != nil {
		return zero, nil, nil, errors.New("invalid argon2 hash")
	}
	if len(key) < 16 {
		return zero, nil, nil, errors.New("invalid argon2 hash length")
	}
	return p, salt, key, nil
}
