package server

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"cdrive/internal/config"
	"cdrive/internal/daemon"
	"cdrive/internal/logging"
	"cdrive/internal/version"
)

type Options struct {
	ConfigPath string
	LogLevel   string
	LogJSON    bool

	DBPath      string
	StorageDir  string
	BindAddr    string
	Port        int
	BaseURL     string
	MaxUploadMB int
	QuotaMB     int64
}

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var opt Options
	var showVersion bool
	fs.StringVar(&opt.ConfigPath, "config", "", "path to cdrive.yaml (when set, other flags are ignored)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&opt.LogLevel, "log-level", "info", "log level: debug|info|warning|error")
	fs.BoolVar(&opt.LogJSON, "log-json", false, "emit logs as JSON")
	fs.StringVar(&opt.DBPath, "db", "./data/cdrive.db", "sqlite database path")
	fs.StringVar(&opt.StorageDir, "storage-dir", "./data/blobs", "blob storage directory")
	fs.StringVar(&opt.BindAddr, "bind", "127.0.0.1", "bind address")
	fs.IntVar(&opt.Port, "port", 8420, "HTTP port")
	fs.StringVar(&opt.BaseURL, "base-url", "", "absolute base URL for share links")
	fs.IntVar(&opt.MaxUploadMB, "max-upload-mb", 512, "maximum single upload size in MiB")
	fs.Int64Var(&opt.QuotaMB, "default-quota-mb", 8192, "storage quota for new accounts in MiB")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("cdrive server %s\n", version.Version)
		return nil
	}

	if opt.ConfigPath != "" {
		c, err := config.Load(opt.ConfigPath)
		if err != nil {
			return err
		}
		base := filepath.Dir(opt.ConfigPath)
		lg, _, err := logging.New(logging.Options{Level: c.Log.Level, JSON: c.Log.JSON, DefaultSlog: true})
		if err != nil {
			return err
		}
		return daemon.Run(context.Background(), daemon.Options{
			DBPath:         resolvePath(base, c.DB.Path),
			StorageDir:     resolvePath(base, c.Storage.Dir),
			BindAddr:       c.HTTP.Bind,
			Port:           c.HTTP.Port,
			BaseURL:        c.HTTP.BaseURL,
			MaxUploadBytes: int64(c.HTTP.MaxUploadMB) << 20,
			DefaultQuota:   c.Storage.DefaultQuotaMB << 20,
			Logger:         lg,
		})
	}

	lg, _, err := logging.New(logging.Options{Level: opt.LogLevel, JSON: opt.LogJSON, DefaultSlog: true})
	if err != nil {
		return err
	}
	return daemon.Run(context.Background(), daemon.Options{
		DBPath:         opt.DBPath,
		StorageDir:     opt.StorageDir,
		BindAddr:       opt.BindAddr,
		Port:           opt.Port,
		BaseURL:        strings.TrimRight(opt.BaseURL, "/"),
		MaxUploadBytes: int64(opt.MaxUploadMB) << 20,
		DefaultQuota:   opt.QuotaMB << 20,
		Logger:         lg,
	})
}

func resolvePath(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
