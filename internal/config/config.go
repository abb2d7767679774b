package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Paths     PathsConfig     `yaml:"paths"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

// ServerConfig contains status-server configuration.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// APIConfig contains upstream assist-API configuration.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	TokenURL  string        `yaml:"token_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PathsConfig locates the local state on disk.
type PathsConfig struct {
	DataDir string `yaml:"data_dir"`
	AuthDir string `yaml:"auth_dir"`
	DBPath  string `yaml:"db_path"`
}

// SchedulerConfig contains daemon-mode scheduling configuration.
type SchedulerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
}

// TelegramConfig contains optional trigger-outcome notification settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			HTTPPort:        8419,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Paths: PathsConfig{
			DataDir: "./data",
			AuthDir: "./data/auth",
			DBPath:  "./data/wakeguard.db",
		},
		Scheduler: SchedulerConfig{
			Interval:      15 * time.Minute,
			RetentionDays: 30,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths data_dir is required")
	}
	if c.Paths.AuthDir == "" {
		return fmt.Errorf("paths auth_dir is required")
	}
	if c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler interval must be at least 1m, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.RetentionDays < 0 {
		return fmt.Errorf("scheduler retention_days cannot be negative")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram chat_id is required when telegram is enabled")
		}
	}
	return nil
}
