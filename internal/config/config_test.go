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
	assert.Equal(t, 8419, cfg.Server.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  http_port: 9000
  log_level: debug
scheduler:
  interval: 5m
paths:
  data_dir: /var/lib/wakeguard
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "/var/lib/wakeguard", cfg.Paths.DataDir)
	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Scheduler.RetentionDays)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("server: ["))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: "http_port",
		},
		{
			name:    "missing data dir",
			mutate:  func(c *Config) { c.Paths.DataDir = "" },
			wantErr: "data_dir",
		},
		{
			name:    "interval too short",
			mutate:  func(c *Config) { c.Scheduler.Interval = 10 * time.Second },
			wantErr: "interval",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Scheduler.RetentionDays = -1 },
			wantErr: "retention_days",
		},
		{
			name:    "telegram enabled without token",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = 1 },
			wantErr: "bot_token",
		},
		{
			name:    "telegram enabled without chat id",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.BotToken = "t" },
			wantErr: "chat_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoaderMissingFileYieldsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Same(t, cfg, loader.Get())
}

func TestLoaderExpandsEnvironment(t *testing.T) {
	t.Setenv("WG_TEST_DATA_DIR", "/srv/wg")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  data_dir: ${WG_TEST_DATA_DIR}\n"), 0o600))

	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/wg", cfg.Paths.DataDir)
}

func TestLoaderWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9100\n"), 0o600))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	loader.SetOnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	require.NoError(t, loader.StartWatcher())
	defer loader.StopWatcher()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9200\n"), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, 9200, cfg.Server.HTTPPort)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not deliver the reloaded config")
	}
}

func TestLoaderIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9100\n"), 0o600))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	loader.SetOnChange(func(c *Config) { changed <- c })
	require.NoError(t, loader.StartWatcher())
	defer loader.StopWatcher()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	select {
	case <-changed:
		t.Fatal("unrelated file change must not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
