package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"salesdesk/backend/internal/config"
	"salesdesk/backend/internal/logging"
	pgstore "salesdesk/backend/internal/store/postgres"
)

// Usage: migrate [-timeout 1m] <up|down|status|version|redo|reset> [args]
func main() {
	timeout := flag.Duration("timeout", time.Minute, "overall migration timeout")
	flag.Parse()

	command := "up"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{
		ServiceName: "salesdesk-migrate",
		Level:       logging.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithField(ctx, "command", command)

	if cfg.DB.URL == "" {
		logger.Error(ctx, "DATABASE_URL is required", nil)
		os.Exit(1)
	}

	pg, err := pgstore.New(ctx, cfg.DB.URL)
	if err != nil {
		logger.Error(ctx, "connect postgres", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pgstore.Migrate(ctx, pg.DB(), command, args...); err != nil {
		logger.Error(ctx, "migration failed", err)
		pg.Close()
		os.Exit(1)
	}
	logger.Info(ctx, "migration complete")
}
