package useradd

import (
	"context"
	"flag"

	iuseradd "cdrive/internal/useradd"
)

type Options struct {
	DBPath      string
	Username    string
	QuotaMB     int64
	UpdateQuota bool
}

func Run(args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.DBPath, "db", "./data/cdrive.db", "sqlite database path")
	fs.StringVar(&opt.Username, "username", "", "account name to create")
	fs.Int64Var(&opt.QuotaMB, "quota-mb", 0, "storage quota in MiB (0 keeps the 8 GiB default)")
	fs.BoolVar(&opt.UpdateQuota, "update-quota", false, "change the quota of an existing account instead of creating one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return iuseradd.Run(context.Background(), iuseradd.Options{
		DBPath:       opt.DBPath,
		Username:     opt.Username,
		StorageLimit: opt.QuotaMB << 20,
		UpdateQuota:  opt.UpdateQuota,
	})
}
