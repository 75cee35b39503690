// Package config handles loading and validating foreman configuration.
// Supports YAML config files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marcus/foreman/internal/logging"
	"github.com/marcus/foreman/internal/scheduler"
	"github.com/marcus/foreman/internal/tasks"
)

// Store backend names.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRemote = "remote"
)

// Config holds all foreman configuration.
type Config struct {
	WorkDir string `mapstructure:"work_dir"`

	// Autonomy maps task types to their autonomy level. Types not
	// listed run supervised.
	Autonomy map[string]string `mapstructure:"autonomy"`

	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Store     StoreConfig     `mapstructure:"store"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// Recurring tasks submitted on a cron schedule.
	Recurring []tasks.RecurringTask `mapstructure:"recurring"`
}

// SchedulerConfig controls queue ordering and concurrency.
type SchedulerConfig struct {
	MaxConcurrent   int            `mapstructure:"max_concurrent"`
	Cooldown        time.Duration  `mapstructure:"cooldown"`
	PriorityWeights map[string]int `mapstructure:"priority_weights"`
	TypeWeights     map[string]int `mapstructure:"type_weights"`
}

// ApprovalConfig controls the approval gate.
type ApprovalConfig struct {
	MaxAutoApprovals int `mapstructure:"max_auto_approvals"`
}

// AgentsConfig controls agent execution.
type AgentsConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // memory, sqlite or remote
	Path    string `mapstructure:"path"`    // sqlite database file
	URL     string `mapstructure:"url"`     // remote base URL
	Token   string `mapstructure:"token"`   // remote bearer token
}

// InboxConfig controls the filesystem task inbox.
type InboxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // scripted for dry runs
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`  // debug, info, warn, error
	Dir           string `mapstructure:"dir"`    // log directory; empty logs to stderr only
	Format        string `mapstructure:"format"` // json or text
	RetentionDays int    `mapstructure:"retention_days"`
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "foreman", "config.yaml")
}

// Load reads configuration from the given file (or the default
// location when empty) and FOREMAN_ environment variables. A missing
// file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FOREMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("work_dir", ".")
	v.SetDefault("scheduler.max_concurrent", scheduler.DefaultMaxConcurrent)
	v.SetDefault("scheduler.cooldown", scheduler.DefaultCooldown)
	v.SetDefault("approval.max_auto_approvals", 10)
	v.SetDefault("agents.max_iterations", 10)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("inbox.enabled", false)
	v.SetDefault("llm.provider", "scripted")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", logging.DefaultConfig().Path)
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.retention_days", 7)
}

// Validate checks config values that have a constrained domain.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreSQLite:
	case StoreRemote:
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	for taskType, level := range c.Autonomy {
		switch tasks.Autonomy(level) {
		case tasks.AutonomyFull, tasks.AutonomySupervised, tasks.AutonomyManual:
		default:
			return fmt.Errorf("unknown autonomy level %q for type %q", level, taskType)
		}
	}

	if c.Scheduler.MaxConcurrent < 0 {
		return fmt.Errorf("scheduler.max_concurrent must not be negative")
	}
	if c.Agents.MaxIterations < 0 {
		return fmt.Errorf("agents.max_iterations must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Path:          c.Logging.Dir,
		Format:        c.Logging.Format,
		RetentionDays: c.Logging.RetentionDays,
	}
}

// AutonomyMap converts the config's string map to typed autonomy
// levels for the task queue.
func (c *Config) AutonomyMap() map[tasks.Type]tasks.Autonomy {
	if len(c.Autonomy) == 0 {
		return nil
	}
	out := make(map[tasks.Type]tasks.Autonomy, len(c.Autonomy))
	for taskType, level := range c.Autonomy {
		out[tasks.Type(taskType)] = tasks.Autonomy(level)
	}
	return out
}

// SchedulerOptions converts the scheduler section into scheduler
// options, falling back to defaults for anything unset.
func (c *Config) SchedulerOptions() scheduler.Options {
	opts := scheduler.DefaultOptions()
	if c.Scheduler.MaxConcurrent > 0 {
		opts.MaxConcurrent = c.Scheduler.MaxConcurrent
	}
	if c.Scheduler.Cooldown > 0 {
		opts.Cooldown = c.Scheduler.Cooldown
	}
	for priority, weight := range c.Scheduler.PriorityWeights {
		opts.PriorityWeights[tasks.Priority(priority)] = weight
	}
	for taskType, weight := range c.Scheduler.TypeWeights {
		opts.TypeWeights[tasks.Type(taskType)] = weight
	}
	return opts
}
