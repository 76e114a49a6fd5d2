// Package blob stores file content on a filesystem abstraction, addressed
// by server-generated keys. Keys are flat (no directories) and never derive
// from user input directly, so display names can hold anything.
package blob

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys this store could not have issued.
var ErrInvalidKey = errors.New("invalid storage key")

// keyRe matches keys minted by NewKey: a UUID, an underscore, and a
// sanitized name fragment.
var keyRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}_[A-Za-z0-9._-]{1,128}$`)

// unsafeRe strips everything a key fragment may not contain.
var unsafeRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Store struct {
	fs  afero.Fs
	dir string
}

// New opens a store rooted at dir on the OS filesystem.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Store{fs: fs, dir: dir}, nil
}

// NewMem returns an in-memory store for tests.
func NewMem() *Store {
	return &Store{fs: afero.NewMemMapFs(), dir: "/blobs"}
}

// NewKey mints a fresh storage key for a display name. The random prefix
// makes collisions between same-named uploads a non-issue.
func NewKey(displayName string) string {
	frag := unsafeRe.ReplaceAllString(filepath.Base(displayName), "-")
	frag = strings.Trim(frag, "-")
	if frag == "" {
		frag = "file"
	}
	if len(frag) > 128 {
		frag = frag[:128]
	}
	return uuid.NewString() + "_" + frag
}

// ValidKey reports whether key has the shape NewKey produces.
func ValidKey(key string) bool {
	return keyRe.MatchString(key)
}

func (s *Store) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}

// Write streams r into the blob for key and returns the byte count.
// A failed write is cleaned up so no partial blob lingers.
func (s *Store) Write(key string, r io.Reader) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(p)
		return 0, err
	}
	return n, nil
}

// Open returns a read handle for the blob. The handle supports seeking,
// so it can back range-aware HTTP serving.
func (s *Store) Open(key string) (afero.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(p)
}

// Remove deletes the blob for key. An already-absent blob is not an
// error; any other failure is.
func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	err = s.fs.Remove(p)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}
