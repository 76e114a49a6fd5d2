// Package useradd creates accounts from the command line, prompting for
// the password so it never lands in shell history.
package useradd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"cdrive/internal/auth"
	"cdrive/internal/db"
	"cdrive/internal/validate"
)

type Options struct {
	DBPath   string
	Username string

	// StorageLimit in bytes. Zero keeps the schema default of 8 GiB.
	StorageLimit int64

	// UpdateQuota changes the limit of an existing account instead of
	// creating one; no password prompt in that mode.
	UpdateQuota bool
}

func Run(ctx context.Context, opt Options) error {
	if opt.DBPath == "" {
		return errors.New("db path is required")
	}
	if err := validate.Username(opt.Username); err != nil {
		return err
	}
	if opt.StorageLimit < 0 {
		return errors.New("storage limit must not be negative")
	}

	if err := os.MkdirAll(filepath.Dir(opt.DBPath), 0o700); err != nil {
		return err
	}
	d, err := db.Open(ctx, opt.DBPath)
	if err != nil {
		return err
	}
	defer d.Close()
	_ = os.Chmod(opt.DBPath, 0o600)

	if opt.UpdateQuota {
		return updateQuota(ctx, d, opt)
	}

	pass, err := promptPassword(fmt.Sprintf("Password for %s", opt.Username))
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pass, auth.DefaultArgon2Params())
	if err != nil {
		return err
	}

	limit := opt.StorageLimit
	if limit == 0 {
		limit = 8 << 30
	}
	id, err := d.CreateUser(ctx, opt.Username, hash, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "created user %s (id %d)\n", opt.Username, id)
	return nil
}

func updateQuota(ctx context.Context, d *db.DB, opt Options) error {
	if opt.StorageLimit <= 0 {
		return errors.New("a positive quota is required with -update-quota")
	}
	u, ok, err := d.GetUserByUsername(ctx, opt.Username)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no such user: %s", opt.Username)
	}
	if err := d.SetStorageLimit(ctx, u.ID, opt.StorageLimit); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "updated quota for %s to %d bytes\n", opt.Username, opt.StorageLimit)
	return nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression isn't possible.
	r := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		p1, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm password: ")
		p2, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		p1 = strings.TrimSpace(p1)
		p2 = strings.TrimSpace(p2)
		if p1 == "" {
			fmt.Fprintln(os.Stderr, "password cannot be empty")
			continue
		}
		if p1 != p2 {
			fmt.Fprintln(os.Stderr, "passwords do not match")
			continue
		}
		return p1, nil
	}
}
