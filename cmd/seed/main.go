// Command seed loads the default menu, admin account and order counter.
package main

import (
	"context"
	"os"

	"cafe-ordering-api/config"
	"cafe-ordering-api/seed"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := config.NewLogger(cfg)

	db, err := config.OpenDB(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	err = seed.Run(context.Background(), db, seed.Options{
		AdminPassword:    cfg.SeedAdminPass,
		OrderNumberStart: cfg.OrderNumberStart,
	}, log)
	if err != nil {
		log.WithError(err).Error("seed failed")
		os.Exit(1)
	}
	log.Info("seed complete")
}
