// Package daemon wires the database, the blob store, and the HTTP API
// into a running cdrive server process.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cdrive/internal/blob"
	"cdrive/internal/db"
	"cdrive/internal/httpapi"
)

type Options struct {
	DBPath     string
	StorageDir string
	BindAddr   string
	Port       int

	// BaseURL, when set, is used verbatim for share links instead of the
	// request's Host header.
	BaseURL string

	MaxUploadBytes int64
	DefaultQuota   int64

	Logger *slog.Logger
}

const sessionSweepInterval = time.Hour

func Run(ctx context.Context, opt Options) error {
	if opt.DBPath == "" {
		return errors.New("db path is required")
	}
	if opt.StorageDir == "" {
		return errors.New("storage dir is required")
	}
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
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

	blobs, err := blob.New(opt.StorageDir)
	if err != nil {
		return err
	}

	api := &httpapi.Server{
		DB:             d,
		Blobs:          blobs,
		Logger:         lg,
		BindAddr:       opt.BindAddr,
		Port:           opt.Port,
		BaseURL:        opt.BaseURL,
		MaxUploadBytes: opt.MaxUploadBytes,
		DefaultQuota:   opt.DefaultQuota,
	}
	defer api.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- api.ListenAndServe() }()
	go sweepSessions(ctx, d, lg)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// sweepSessions periodically drops expired session rows so the table
// does not grow without bound.
func sweepSessions(ctx context.Context, d *db.DB, lg *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.DeleteExpiredSessions(ctx, time.Now().Unix())
			if err != nil {
				lg.Warn("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				lg.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
