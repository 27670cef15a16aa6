package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Catalog.MatchCutoff != 0.6 {
		t.Fatalf("expected default cutoff 0.6, got %v", cfg.Catalog.MatchCutoff)
	}
	if cfg.Session.LogCapacity != 20 {
		t.Fatalf("expected log capacity 20, got %d", cfg.Session.LogCapacity)
	}
	if cfg.Capture.PhraseTimeLimitMS != 5000 {
		t.Fatalf("expected phrase limit 5000, got %d", cfg.Capture.PhraseTimeLimitMS)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_TILL_BUS_ENABLED", "true")
	t.Setenv("LOQA_TILL_BUS_EMBEDDED", "false")
	t.Setenv("LOQA_TILL_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_TILL_CAPTURE_PHRASE_TIME_LIMIT_MS", "3000")
	t.Setenv("LOQA_TILL_CATALOG_MATCH_CUTOFF", "0.75")
	t.Setenv("LOQA_TILL_ARCHIVE_DRIVER", "ephemeral")
	t.Setenv("LOQA_TILL_STT_MODE", "exec")
	t.Setenv("LOQA_TILL_STT_COMMAND", "whisper-cli --json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Capture.PhraseTimeLimitMS != 3000 {
		t.Fatalf("expected phrase limit override, got %d", cfg.Capture.PhraseTimeLimitMS)
	}
	if cfg.Catalog.MatchCutoff != 0.75 {
		t.Fatalf("expected cutoff override, got %v", cfg.Catalog.MatchCutoff)
	}
	if cfg.Archive.Driver != "ephemeral" {
		t.Fatalf("expected archive driver override")
	}
	if cfg.STT.Command != "whisper-cli --json" {
		t.Fatalf("expected stt command override")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "till.yaml")
	data := []byte(`
runtime_name: front-counter
stt:
  mode: mock
  script: ["name alice", "2 coffee"]
bill:
  store_name: Corner Cafe
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "front-counter" {
		t.Fatalf("expected runtime name from file, got %q", cfg.RuntimeName)
	}
	if len(cfg.STT.Script) != 2 {
		t.Fatalf("expected script entries, got %v", cfg.STT.Script)
	}
	if cfg.Bill.StoreName != "Corner Cafe" {
		t.Fatalf("expected store name from file")
	}
	if cfg.HTTP.Port != 8050 {
		t.Fatalf("expected default port retained, got %d", cfg.HTTP.Port)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"exec without command", func(c *Config) { c.STT.Mode = "exec" }},
		{"openai without key", func(c *Config) { c.STT.Mode = "openai"; c.STT.APIKey = "" }},
		{"bad cutoff", func(c *Config) { c.Catalog.MatchCutoff = 1.5 }},
		{"bus playback without bus", func(c *Config) { c.Playback.Mode = "bus" }},
		{"postgres without dsn", func(c *Config) { c.Archive.Driver = "postgres" }},
		{"zero log capacity", func(c *Config) { c.Session.LogCapacity = 0 }},
		{"unknown source", func(c *Config) { c.Capture.Source = "line-in" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
