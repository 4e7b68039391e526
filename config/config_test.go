package config

import (
	"testing"
	"time"
)

func TestLoadRequiresMySQLDSN(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-test")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when MYSQL_DSN is missing")
	}
}

func TestLoadRequiresMidtransServerKey(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/bookings")
	t.Setenv("MIDTRANS_SERVER_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when MIDTRANS_SERVER_KEY is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/bookings")
	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.App.ServiceName != "reconciliation-service" {
		t.Fatalf("unexpected service name: %q", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8080" {
		t.Fatalf("unexpected http port: %q", cfg.HTTP.Port)
	}
	if cfg.Midtrans.BaseURL != "https://api.sandbox.midtrans.com" {
		t.Fatalf("unexpected midtrans base url: %q", cfg.Midtrans.BaseURL)
	}
	if cfg.Midtrans.HTTPTimeout != 10*time.Second {
		t.Fatalf("unexpected midtrans timeout: %v", cfg.Midtrans.HTTPTimeout)
	}
	if cfg.Reconcile.PollMaxAttempts != 10 {
		t.Fatalf("unexpected poll max attempts: %d", cfg.Reconcile.PollMaxAttempts)
	}
	if cfg.Reconcile.PollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.Reconcile.PollInterval)
	}
	if cfg.AMQP.Exchange != "payments" {
		t.Fatalf("unexpected amqp exchange: %q", cfg.AMQP.Exchange)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/bookings")
	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-test")
	t.Setenv("RECONCILE_POLL_MAX_ATTEMPTS", "3")
	t.Setenv("RECONCILE_POLL_INTERVAL_SECONDS", "5")
	t.Setenv("RECONCILE_STALE_AFTER_MINUTES", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Reconcile.PollMaxAttempts != 3 {
		t.Fatalf("unexpected poll max attempts: %d", cfg.Reconcile.PollMaxAttempts)
	}
	if cfg.Reconcile.PollInterval != 5*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.Reconcile.PollInterval)
	}
	if cfg.Reconcile.StaleAfter != 30*time.Minute {
		t.Fatalf("unexpected stale-after: %v", cfg.Reconcile.StaleAfter)
	}
}
