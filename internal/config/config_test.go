package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("payments.signing_secret", "pay-secret")
	configViper.Set("payments.callback_secret", "provider-secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database defaults: %s %s", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("expected 10MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.Fees.BibleSchool.String() != "350" {
		t.Fatalf("unexpected bible school fee: %s", cfg.Fees.BibleSchool)
	}
	if !cfg.Fees.Membership.IsZero() {
		t.Fatalf("expected membership to be free by default, got %s", cfg.Fees.Membership)
	}
	if cfg.Outbox.MaxAttempts != defaultOutboxAttempts {
		t.Fatalf("unexpected outbox attempts: %d", cfg.Outbox.MaxAttempts)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	configViper := NewViper()
	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("expected auth secret error, got %v", err)
	}
	configViper.Set("auth.signing_secret", "secret")
	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "payments.signing_secret") {
		t.Fatalf("expected payments secret error, got %v", err)
	}
	configViper.Set("payments.signing_secret", "pay-secret")
	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "payments.callback_secret") {
		t.Fatalf("expected callback secret error, got %v", err)
	}
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("payments.signing_secret", "pay-secret")
	configViper.Set("payments.callback_secret", "provider-secret")
	configViper.Set("database.driver", "postgres")
	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "database.dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestLoadRejectsInvalidFee(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("payments.signing_secret", "pay-secret")
	configViper.Set("payments.callback_secret", "provider-secret")
	configViper.Set("fees.bible_school", "three hundred")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected fee parse error")
	}
}
