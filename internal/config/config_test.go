package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Errorf("Addr = %q, want :8787", cfg.Addr)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.SubdomainDebounce != 500*time.Millisecond {
		t.Errorf("SubdomainDebounce = %v", cfg.SubdomainDebounce)
	}
	if cfg.SMTPConfigured() {
		t.Error("SMTP must not be configured by default")
	}
	if cfg.SentryDSN != "" || cfg.SentryEnvironment != "development" {
		t.Errorf("sentry defaults = %q, %q", cfg.SentryDSN, cfg.SentryEnvironment)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("LAUNCHKIT_ADDR", ":9999")
	t.Setenv("LAUNCHKIT_ROOT_DOMAIN", "pages.example.com")
	t.Setenv("LAUNCHKIT_SESSION_TTL", "2h")
	t.Setenv("LAUNCHKIT_AUTH_RATE_BURST", "3")
	t.Setenv("LAUNCHKIT_COOKIE_SECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.RootDomain != "pages.example.com" {
		t.Errorf("RootDomain = %q", cfg.RootDomain)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.AuthRateBurst != 3 {
		t.Errorf("AuthRateBurst = %d", cfg.AuthRateBurst)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure = false, want true")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launchkit.yaml")
	if err := os.WriteFile(path, []byte("smtp_host: smtp.example.com\nsmtp_from: hola@example.com\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LAUNCHKIT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.SMTPConfigured() {
		t.Fatalf("expected SMTP configured from file, got host=%q from=%q", cfg.SMTPHost, cfg.SMTPFrom)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("LAUNCHKIT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
