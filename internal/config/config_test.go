package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3429, cfg.Port)
	assert.Equal(t, int64(120000), cfg.InactivityTimeoutMs)
	assert.Equal(t, 50, cfg.HistorySize)
	assert.Equal(t, 2*time.Minute, cfg.InactivityTimeout())
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	assert.NoError(t, err, "expected default config file to be created")
}

func TestLoadJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.json")

	original := Default()
	original.Port = 8099
	original.InactivityTimeoutMs = 60000
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")

	data := []byte("port: 9000\ninactivity_timeout_ms: 30000\nhistory_size: 10\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, int64(30000), cfg.InactivityTimeoutMs)
	assert.Equal(t, 10, cfg.HistorySize)
}

func TestLoadPartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 8080}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(120000), cfg.InactivityTimeoutMs)
	assert.Equal(t, 50, cfg.HistorySize)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.InactivityTimeoutMs = 0 }},
		{"negative timeout", func(c *Config) { c.InactivityTimeoutMs = -1 }},
		{"zero history", func(c *Config) { c.HistorySize = 0 }},
		{"watchdog enabled without schedule", func(c *Config) {
			c.Watchdog.Enabled = true
			c.Watchdog.Schedule = "  "
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
