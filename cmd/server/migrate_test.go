package main

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/infrastructure/config"
)

func stubMigrations(t *testing.T) *[]string {
	t.Helper()

	var calls []string
	up, down := migrateUp, migrateDown
	migrateUp = func(url string, _ zerolog.Logger) error {
		calls = append(calls, "up "+url)
		return nil
	}
	migrateDown = func(url string, _ zerolog.Logger) error {
		calls = append(calls, "down "+url)
		return nil
	}
	t.Cleanup(func() { migrateUp, migrateDown = up, down })

	return &calls
}

func TestRunMigrateDispatches(t *testing.T) {
	calls := stubMigrations(t)
	cfg := &config.Config{StorageBackend: config.StoragePostgres, DatabaseURL: "postgres://db"}

	if err := runMigrate([]string{"migrate", "up"}, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := runMigrate([]string{"migrate", "down"}, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("migrate down: %v", err)
	}

	if len(*calls) != 2 || (*calls)[0] != "up postgres://db" || (*calls)[1] != "down postgres://db" {
		t.Fatalf("unexpected calls: %v", *calls)
	}
}

func TestRunMigrateRejectsBadInput(t *testing.T) {
	calls := stubMigrations(t)
	pg := &config.Config{StorageBackend: config.StoragePostgres}

	for _, args := range [][]string{{"serve"}, {"migrate"}, {"migrate", "sideways"}} {
		if err := runMigrate(args, pg, zerolog.Nop()); !errors.Is(err, errUsage) {
			t.Fatalf("expected usage error for %v, got %v", args, err)
		}
	}

	mem := &config.Config{StorageBackend: config.StorageMemory}
	if err := runMigrate([]string{"migrate", "up"}, mem, zerolog.Nop()); err == nil {
		t.Fatal("expected migrations to need the postgres backend")
	}

	if len(*calls) != 0 {
		t.Fatalf("no migration should have run, got %v", *calls)
	}
}
