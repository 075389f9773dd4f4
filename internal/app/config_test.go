package app

import (
	"strings"
	"testing"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(logger.NewNop()); err == nil {
		t.Fatalf("expected an error when DATABASE_URL is unset outside test")
	}
}

func TestLoadConfigDefaultsStoreInTestEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig(logger.NewNop())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	// The fallback must keep gorm's pooled connections on one database.
	if !strings.Contains(cfg.DatabaseURL, "cache=shared") {
		t.Fatalf("test fallback DSN = %q, want a shared-cache sqlite DSN", cfg.DatabaseURL)
	}
}

func TestLoadConfigProdHardening(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/app")
	t.Setenv("SECRET_KEY", "change-me")

	if _, err := LoadConfig(logger.NewNop()); err == nil {
		t.Fatalf("expected an error for a placeholder SECRET_KEY in prod")
	}

	t.Setenv("SECRET_KEY", strings.Repeat("k", 40))
	t.Setenv("DATABASE_URL", "sqlite://local.db")
	if _, err := LoadConfig(logger.NewNop()); err == nil {
		t.Fatalf("expected an error for a sqlite store in prod")
	}

	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/app")
	t.Setenv("LOG_LEVEL", "DEBUG")
	if _, err := LoadConfig(logger.NewNop()); err == nil {
		t.Fatalf("expected an error for DEBUG logging in prod")
	}
}
