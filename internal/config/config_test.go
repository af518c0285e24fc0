package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("TECH_WATCH_CONFIG", "")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("OWNER_ID", "owner-env")
	t.Setenv("DATABASE_DSN", "postgres://env")

	cfg := Load()

	if cfg.Summarizer.APIKey != "env-key" {
		t.Fatalf("env override not applied: %q", cfg.Summarizer.APIKey)
	}
	if cfg.OwnerID != "owner-env" {
		t.Fatalf("owner override not applied: %q", cfg.OwnerID)
	}
	if cfg.Summarizer.RequestsPerMinute != 10 {
		t.Fatalf("unexpected default rpm: %d", cfg.Summarizer.RequestsPerMinute)
	}
	if cfg.Summarizer.InitialBackoff() != 10*time.Second {
		t.Fatalf("unexpected default backoff: %v", cfg.Summarizer.InitialBackoff())
	}
	if cfg.Enrichment.RemarkLimit != 5 {
		t.Fatalf("unexpected default remark limit: %d", cfg.Enrichment.RemarkLimit)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadMergesFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
summarizer:
  requestsPerMinute: 4
  maxRetries: 2
feed:
  url: https://feeds.example/frontpage
scheduler:
  enabled: true
  intervalHours: 6
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TECH_WATCH_CONFIG", path)

	cfg := Load()

	if cfg.Summarizer.RequestsPerMinute != 4 {
		t.Fatalf("file rpm not merged: %d", cfg.Summarizer.RequestsPerMinute)
	}
	if cfg.Summarizer.MaxRetries != 2 {
		t.Fatalf("file retries not merged: %d", cfg.Summarizer.MaxRetries)
	}
	if cfg.Feed.URL != "https://feeds.example/frontpage" {
		t.Fatalf("file feed url not merged: %q", cfg.Feed.URL)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Interval() != 6*time.Hour {
		t.Fatalf("file scheduler not merged: %+v", cfg.Scheduler)
	}
	if cfg.Summarizer.Model != "gemini-2.5-flash" {
		t.Fatalf("defaults lost in merge: %q", cfg.Summarizer.Model)
	}
}

func TestValidateRejectsMissingCredential(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.DSN = "postgres://somewhere"
	cfg.OwnerID = "owner-1"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing API key")
	}

	cfg.Summarizer.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
