// Package config handles feedline configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for feedline.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Homeserver settings
	Homeserver HomeserverConfig `yaml:"homeserver" mapstructure:"homeserver"`

	// Database settings for the local search index
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Feed settings
	Feed FeedConfig `yaml:"feed" mapstructure:"feed"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// GlobalConfig contains global feedline settings.
type GlobalConfig struct {
	// DataDir is where feedline stores its data (default: ~/.local/share/feedline).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/feedline).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// HomeserverConfig contains homeserver connection settings.
type HomeserverConfig struct {
	// URL is the homeserver base URL (https://matrix.example.org).
	URL string `yaml:"url" mapstructure:"url"`

	// AccessToken authenticates requests against the client-server API.
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`

	// RequestTimeout bounds a single API request.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	// SyncTimeout is the long-poll timeout passed to /sync.
	SyncTimeout time.Duration `yaml:"sync_timeout" mapstructure:"sync_timeout"`
}

// DatabaseConfig contains settings for the local search index database.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// FeedConfig contains filtered feed settings.
type FeedConfig struct {
	// PageSize is the default event count fetched per pagination call.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// UseLocalIndex enables the search-index-backed source for encrypted rooms.
	UseLocalIndex bool `yaml:"use_local_index" mapstructure:"use_local_index"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "feedline"),
			ConfigDir: filepath.Join(homeDir, ".config", "feedline"),
		},
		Homeserver: HomeserverConfig{
			RequestTimeout: 45 * time.Second,
			SyncTimeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:           "", // Will be set to DataDir/index.db
			MaxConnections: 10,
			BusyTimeoutMs:  5000,
		},
		Feed: FeedConfig{
			PageSize:      20,
			UseLocalIndex: true,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return fmt.Errorf("homeserver.url is required")
	}
	if !strings.HasPrefix(c.Homeserver.URL, "http://") && !strings.HasPrefix(c.Homeserver.URL, "https://") {
		return fmt.Errorf("homeserver.url must be an http(s) URL")
	}

	if c.Feed.PageSize < 1 {
		return fmt.Errorf("feed.page_size must be at least 1")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1")
	}

	if c.Homeserver.RequestTimeout < time.Second {
		return fmt.Errorf("homeserver.request_timeout must be at least 1s")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full index database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "index.db")
}
