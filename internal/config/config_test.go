package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AppPort != "8080" {
		t.Errorf("AppPort = %q", cfg.AppPort)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %v", cfg.JWTTTL)
	}
	if cfg.CatalogTTL != 5*time.Minute {
		t.Errorf("CatalogTTL = %v", cfg.CatalogTTL)
	}
}

func TestParseAdminIDs(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_IDS", "11,22")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.IsAdmin(22) || cfg.IsAdmin(33) {
		t.Fatalf("unexpected admin ids %v", cfg.AdminTelegramIDs)
	}
}

func TestParseRequiresSecrets(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DEV_MODE", "false")

	if _, err := Parse(); err == nil {
		t.Fatal("expected validation error")
	}
}
