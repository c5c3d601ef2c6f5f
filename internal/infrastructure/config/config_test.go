package config_test

import (
	"testing"
	"time"

	"github.com/iho/cardtrade/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StorageBackend != config.StoragePostgres {
		t.Fatalf("expected postgres backend by default, got %q", cfg.StorageBackend)
	}

	if cfg.JWTSecret != "" {
		t.Fatalf("expected JWT secret default to be empty, got %q", cfg.JWTSecret)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.SettlementClaimTTL != 30*time.Second {
		t.Fatalf("expected 30s claim ttl, got %s", cfg.SettlementClaimTTL)
	}

	if cfg.TradeIdleTimeout != 15*time.Minute {
		t.Fatalf("expected 15m idle timeout, got %s", cfg.TradeIdleTimeout)
	}

	if !cfg.TradeAllowRenegotiation {
		t.Fatalf("expected renegotiation enabled by default")
	}

	if cfg.DatabaseMaxRetries != 3 || cfg.DatabaseRetryTimeout != 5*time.Second {
		t.Fatalf("unexpected retry defaults: %d / %s", cfg.DatabaseMaxRetries, cfg.DatabaseRetryTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("DATABASE_MAX_RETRIES", "7")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("TRADE_ALLOW_RENEGOTIATION", "false")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/1/token")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StorageBackend != config.StorageMemory {
		t.Fatalf("expected memory backend, got %s", cfg.StorageBackend)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.DatabaseMaxRetries != 7 {
		t.Fatalf("expected retry override, got %d", cfg.DatabaseMaxRetries)
	}

	if cfg.JWTSecret != "top-secret" || !cfg.AuthEnabled {
		t.Fatalf("expected auth settings to be set, got secret=%s enabled=%v", cfg.JWTSecret, cfg.AuthEnabled)
	}

	if cfg.TradeAllowRenegotiation {
		t.Fatalf("expected renegotiation override")
	}

	if cfg.DiscordWebhookURL == "" {
		t.Fatalf("expected webhook url to be set")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown backend":        {"STORAGE_BACKEND": "sqlite"},
		"auth without secret":    {"AUTH_ENABLED": "true", "JWT_SECRET": ""},
		"non-positive claim ttl": {"SETTLEMENT_CLAIM_TTL": "0s"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}

			if _, err := config.Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
