package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the sentinel server configuration
type Config struct {
	// Port the HTTP server listens on.
	Port int `json:"port" yaml:"port"`

	// InactivityTimeoutMs is the grace window after the last recorded
	// activity during which the agent is still considered active.
	InactivityTimeoutMs int64 `json:"inactivity_timeout_ms" yaml:"inactivity_timeout_ms"`

	// HistorySize caps the diagnostic event history.
	HistorySize int `json:"history_size" yaml:"history_size"`

	Watchdog WatchdogConfig `json:"watchdog,omitempty" yaml:"watchdog,omitempty"`
	Debug    DebugConfig    `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// WatchdogConfig controls the periodic activity-transition check
type WatchdogConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Schedule is a 6-field cron expression (with seconds).
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// DebugConfig contains debugging and logging settings
type DebugConfig struct {
	VerboseLogging bool `json:"verbose_logging,omitempty" yaml:"verbose_logging,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Port:                3429,
		InactivityTimeoutMs: 120000,
		HistorySize:         50,
		Watchdog: WatchdogConfig{
			Enabled:  true,
			Schedule: "*/15 * * * * *",
		},
	}
}

// Load loads configuration from a file, creating a default file if none
// exists. Files ending in .yaml/.yml are decoded as YAML, everything else
// as JSON.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow $VAR references in config values.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	var data []byte
	var err error

	if isYAMLPath(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.InactivityTimeoutMs <= 0 {
		return fmt.Errorf("inactivity_timeout_ms must be greater than 0")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be greater than 0")
	}
	if c.Watchdog.Enabled && strings.TrimSpace(c.Watchdog.Schedule) == "" {
		return fmt.Errorf("watchdog schedule must be set when the watchdog is enabled")
	}
	return nil
}

// InactivityTimeout returns the configured timeout as a time.Duration
func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutMs) * time.Millisecond
}

// applyDefaults fills fields a partial config file left unset, so a file
// containing only {"port": 8080} still gets the stock timeout and history.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.InactivityTimeoutMs == 0 {
		c.InactivityTimeoutMs = def.InactivityTimeoutMs
	}
	if c.HistorySize == 0 {
		c.HistorySize = def.HistorySize
	}
	if c.Watchdog.Enabled && c.Watchdog.Schedule == "" {
		c.Watchdog.Schedule = def.Watchdog.Schedule
	}
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
