package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/foreman/internal/scheduler"
	"github.com/marcus/foreman/internal/tasks"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.WorkDir != "." {
		t.Errorf("work_dir = %q", cfg.WorkDir)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
	if cfg.Scheduler.MaxConcurrent != scheduler.DefaultMaxConcurrent {
		t.Errorf("max_concurrent = %d", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.Agents.MaxIterations != 10 {
		t.Errorf("max_iterations = %d", cfg.Agents.MaxIterations)
	}
	if cfg.LLM.Provider != "scripted" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Inbox.Enabled {
		t.Error("inbox should default off")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" || cfg.Logging.RetentionDays != 7 {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Logging.Dir == "" {
		t.Error("logging dir should default to the data dir")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
work_dir: /srv/repo
autonomy:
  docs: full
  feature: manual
scheduler:
  max_concurrent: 3
  cooldown: 15m
  type_weights:
    docs: 25
store:
  backend: sqlite
  path: /tmp/foreman.db
inbox:
  enabled: true
  dir: /srv/inbox
llm:
  provider: openai
  model: gpt-4o
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.WorkDir != "/srv/repo" {
		t.Errorf("work_dir = %q", cfg.WorkDir)
	}
	if cfg.Scheduler.MaxConcurrent != 3 || cfg.Scheduler.Cooldown != 15*time.Minute {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Store.Backend != StoreSQLite || cfg.Store.Path != "/tmp/foreman.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !cfg.Inbox.Enabled || cfg.Inbox.Dir != "/srv/inbox" {
		t.Errorf("inbox = %+v", cfg.Inbox)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "work_dir: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"remote without url", func(c *Config) { c.Store.Backend = StoreRemote }, "store.url"},
		{"remote with url", func(c *Config) {
			c.Store.Backend = StoreRemote
			c.Store.URL = "https://foreman.internal"
		}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, "unknown store backend"},
		{"unknown autonomy", func(c *Config) { c.Autonomy = map[string]string{"docs": "yolo"} }, "unknown autonomy level"},
		{"negative concurrency", func(c *Config) { c.Scheduler.MaxConcurrent = -1 }, "max_concurrent"},
		{"negative iterations", func(c *Config) { c.Agents.MaxIterations = -1 }, "max_iterations"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "unknown logging level"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "unknown logging format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Store: StoreConfig{Backend: StoreMemory}}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestAutonomyMap(t *testing.T) {
	cfg := Config{Autonomy: map[string]string{"docs": "full", "feature": "manual"}}

	m := cfg.AutonomyMap()
	if m[tasks.TypeDocs] != tasks.AutonomyFull || m[tasks.TypeFeature] != tasks.AutonomyManual {
		t.Errorf("map = %v", m)
	}

	if (&Config{}).AutonomyMap() != nil {
		t.Error("empty autonomy should map to nil")
	}
}

func TestSchedulerOptions(t *testing.T) {
	cfg := Config{Scheduler: SchedulerConfig{
		MaxConcurrent: 4,
		TypeWeights:   map[string]int{"docs": 70},
	}}

	opts := cfg.SchedulerOptions()
	if opts.MaxConcurrent != 4 {
		t.Errorf("max concurrent = %d", opts.MaxConcurrent)
	}
	if opts.Cooldown != scheduler.DefaultCooldown {
		t.Error("unset cooldown should keep the default")
	}
	if opts.TypeWeights[tasks.TypeDocs] != 70 {
		t.Errorf("docs weight = %d", opts.TypeWeights[tasks.TypeDocs])
	}
	// Unmentioned weights keep their defaults.
	if opts.TypeWeights[tasks.TypeQA] != scheduler.DefaultOptions().TypeWeights[tasks.TypeQA] {
		t.Error("qa weight changed")
	}
}

func TestLoggingOptions(t *testing.T) {
	cfg := Config{Logging: LoggingConfig{
		Level:         "debug",
		Dir:           "/var/log/foreman",
		Format:        "text",
		RetentionDays: 14,
	}}

	lc := cfg.LoggingOptions()
	if lc.Level != "debug" || lc.Path != "/var/log/foreman" || lc.Format != "text" || lc.RetentionDays != 14 {
		t.Errorf("logging options = %+v", lc)
	}
}
