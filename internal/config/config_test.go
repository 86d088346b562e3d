package config

import (
	"os"
	"testing"
)

func unsetBuildEnv() {
	_ = os.Unsetenv("BILLING_BUILD_TARGET")
	_ = os.Unsetenv("BILLING_DB_DRIVER")
	_ = os.Unsetenv("BILLING_POSTGRES_DSN")
	_ = os.Unsetenv("BILLING_DEFAULT_BILLABLE_RATE")
	_ = os.Unsetenv("BILLING_INVOICE_DUE_DAYS")
}

func TestResolveDefaultsLocal(t *testing.T) {
	unsetBuildEnv()
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.BuildTarget != "local" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected mapping: %s %s", cfg.BuildTarget, cfg.DBDriver)
	}
	if cfg.SQLitePath == "" {
		t.Fatal("empty sqlite path default")
	}
	if got := cfg.DefaultRate(); got.String() != "150" {
		t.Fatalf("default rate = %s, want 150", got)
	}
	if cfg.InvoiceDueDays != 30 {
		t.Fatalf("default due days = %d, want 30", cfg.InvoiceDueDays)
	}
}

func TestResolveDefaultsCloud(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("BILLING_BUILD_TARGET", "cloud")
	_ = os.Setenv("BILLING_POSTGRES_DSN", "postgres://localhost/billing")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected driver for cloud: %s", cfg.DBDriver)
	}
}

func TestCloudRequiresDSN(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("BILLING_BUILD_TARGET", "cloud")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatal("expected error when postgres driver has no DSN")
	}
}

func TestResolveDefaultsOverride(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("BILLING_BUILD_TARGET", "cloud")
	_ = os.Setenv("BILLING_DB_DRIVER", "sqlite")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("override failed, got %s", cfg.DBDriver)
	}
}

func TestRejectsUnknownBuildTarget(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("BILLING_BUILD_TARGET", "hybrid")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatal("expected error for unknown build target")
	}
}

func TestRejectsBadDefaultRate(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("BILLING_DEFAULT_BILLABLE_RATE", "a lot")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatal("expected error for unparseable default rate")
	}
}
