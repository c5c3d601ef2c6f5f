package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/infrastructure/config"
	"github.com/iho/cardtrade/internal/infrastructure/postgres"
)

var errUsage = errors.New("usage: cardtrade-server [migrate up|down]")

// Replaced in tests.
var (
	migrateUp   = postgres.RunMigrations
	migrateDown = postgres.RunMigrationsDown
)

// runMigrate handles "migrate up" and "migrate down" against DATABASE_URL,
// for deployments that run with DATABASE_AUTO_MIGRATE=false.
func runMigrate(args []string, cfg *config.Config, log zerolog.Logger) error {
	if len(args) != 2 || args[0] != "migrate" {
		return errUsage
	}

	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrations need STORAGE_BACKEND=%s, got %q", config.StoragePostgres, cfg.StorageBackend)
	}

	switch args[1] {
	case "up":
		return migrateUp(cfg.DatabaseURL, log)
	case "down":
		return migrateDown(cfg.DatabaseURL, log)
	default:
		return errUsage
	}
}
