package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/indexes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Provider.Timeout != 90*time.Second {
		t.Errorf("Provider.Timeout = %v, want 90s", cfg.Provider.Timeout)
	}
	if !cfg.Jobs.Enabled {
		t.Error("Jobs.Enabled = false, want true by default")
	}
	if cfg.Jobs.CollectSchedule != "0 21 * * 1-5" {
		t.Errorf("Jobs.CollectSchedule = %q", cfg.Jobs.CollectSchedule)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/indexes")
	t.Setenv("PROVIDER_TIMEOUT", "2m")
	t.Setenv("PROVIDER_REQUESTS_PER_MINUTE", "10")
	t.Setenv("JOBS_ENABLED", "false")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider.Timeout != 2*time.Minute {
		t.Errorf("Provider.Timeout = %v, want 2m", cfg.Provider.Timeout)
	}
	if cfg.Provider.RequestsPerMin != 10 {
		t.Errorf("Provider.RequestsPerMin = %d, want 10", cfg.Provider.RequestsPerMin)
	}
	if cfg.Jobs.Enabled {
		t.Error("Jobs.Enabled = true, want false")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want console", cfg.Logging.Format)
	}
}
