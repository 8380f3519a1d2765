// Command server runs the jokes web app.
//
// Configuration comes from configs/config.toml (or JOKES_CONFIG_FILE) and
// JOKES_* environment variables; see internal/config.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/HarveyThePooka404/jokes/internal/config"
	"github.com/HarveyThePooka404/jokes/internal/logger"
	"github.com/HarveyThePooka404/jokes/internal/repository/orm"
	"github.com/HarveyThePooka404/jokes/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if cfg.Database.Driver == orm.DriverSQLite && cfg.Database.DSN != "" && cfg.Database.DSN != ":memory:" {
		dir := filepath.Dir(cfg.Database.DSN)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
