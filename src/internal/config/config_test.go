// FILE: src/internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LOGPULSE_CONFIG_DIR", t.TempDir())
	t.Setenv("LOGPULSE_CONFIG_FILE", "")
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaults()
	cfg.Store.Path = "/tmp/agent.db"
	require.NoError(t, cfg.validate())

	assert.Equal(t, []string{"/var/log"}, cfg.Discovery.Roots)
	assert.Equal(t, int64(50), cfg.Discovery.BackfillLines)
	assert.Equal(t, int64(100), cfg.Sync.BatchSize)
	assert.Equal(t, int64(300), cfg.Sync.IntervalSeconds)
	assert.True(t, cfg.Scheduler.PushEnabled)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadWithCLI(nil)
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.Discovery.BackfillLines)
	assert.NotEmpty(t, cfg.Store.Path, "store path falls back to the home default")
}

func TestLoadFromTOMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOGPULSE_CONFIG_DIR", dir)
	t.Setenv("LOGPULSE_CONFIG_FILE", "")

	content := `
quiet = false

[discovery]
roots = ["/srv/logs"]
backfill_lines = 25

[sync]
batch_size = 500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logpulse.toml"), []byte(content), 0644))

	cfg, err := LoadWithCLI(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/logs"}, cfg.Discovery.Roots)
	assert.Equal(t, int64(25), cfg.Discovery.BackfillLines)
	assert.Equal(t, int64(500), cfg.Sync.BatchSize)
	assert.Equal(t, int64(300), cfg.Sync.IntervalSeconds, "unset keys keep defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOGPULSE_CONFIG_DIR", dir)
	t.Setenv("LOGPULSE_CONFIG_FILE", "")

	content := `
[sync]
batch_size = 500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logpulse.toml"), []byte(content), 0644))
	t.Setenv("LOGPULSE_SYNC_BATCH_SIZE", "250")

	cfg, err := LoadWithCLI(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.Sync.BatchSize)
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no roots", func(c *Config) { c.Discovery.Roots = nil }},
		{"negative backfill", func(c *Config) { c.Discovery.BackfillLines = -1 }},
		{"zero archive ceiling", func(c *Config) { c.Discovery.MaxArchiveSizeMB = 0 }},
		{"zero queue", func(c *Config) { c.Scheduler.EventQueueSize = 0 }},
		{"zero step timeout", func(c *Config) { c.Scheduler.StepTimeoutMS = 0 }},
		{"zero batch", func(c *Config) { c.Sync.BatchSize = 0 }},
		{"zero interval", func(c *Config) { c.Sync.IntervalSeconds = 0 }},
		{"backoff below one", func(c *Config) { c.Sync.RetryBackoff = 0.5 }},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"file output without dir", func(c *Config) { c.Logging.Output = "file"; c.Logging.Directory = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Store.Path = "/tmp/agent.db"
			tc.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestGetConfigPathPrecedence(t *testing.T) {
	t.Setenv("LOGPULSE_CONFIG_FILE", "/etc/logpulse/prod.toml")
	t.Setenv("LOGPULSE_CONFIG_DIR", "/ignored")
	assert.Equal(t, "/etc/logpulse/prod.toml", GetConfigPath(), "absolute file wins")

	t.Setenv("LOGPULSE_CONFIG_FILE", "prod.toml")
	assert.Equal(t, "/ignored/prod.toml", GetConfigPath(), "relative file joins the config dir")

	t.Setenv("LOGPULSE_CONFIG_FILE", "")
	assert.Equal(t, "/ignored/logpulse.toml", GetConfigPath())
}
