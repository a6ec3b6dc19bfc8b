package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("POS_AUTH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing POS_AUTH_SECRET to fail config loading")
	}
}

func TestLoadRejectsBlankAuthSecret(t *testing.T) {
	t.Setenv("POS_AUTH_SECRET", "   ")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected blank POS_AUTH_SECRET to fail config loading")
	}
	if !strings.Contains(err.Error(), "POS_AUTH_SECRET") {
		t.Fatalf("expected error to name POS_AUTH_SECRET, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("POS_AUTH_SECRET", "  0123456789abcdef0123456789abcdef  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Address())
	}
	if cfg.Auth.Secret != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected trimmed secret, got %q", cfg.Auth.Secret)
	}
	if cfg.Auth.AccessTokenTTL != 8*time.Hour {
		t.Fatalf("expected 8h token ttl, got %s", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Redis.StatsCacheTTL != 30*time.Second {
		t.Fatalf("expected 30s stats ttl, got %s", cfg.Redis.StatsCacheTTL)
	}
	if cfg.DB.URL != "" {
		t.Fatalf("expected empty database url by default")
	}
	if !cfg.App.IsDev() {
		t.Fatalf("expected dev env by default")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("POS_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("POS_PORT", "9090")
	t.Setenv("POS_DATABASE_URL", "postgres://pos@localhost/pos")
	t.Setenv("POS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("POS_TIMEZONE", "Asia/Karachi")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Fatalf("expected port override, got %s", cfg.App.Port)
	}
	if cfg.DB.URL != "postgres://pos@localhost/pos" {
		t.Fatalf("unexpected database url %q", cfg.DB.URL)
	}
	if len(cfg.App.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.App.AllowedOrigins)
	}
	loc, err := cfg.App.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Asia/Karachi" {
		t.Fatalf("unexpected location %s", loc)
	}
}
