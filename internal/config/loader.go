package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// settingKeys lists every config key once. Defaults, env bindings
// (FEEDLINE_HOMESERVER_URL and friends) and file values all hang off it.
var settingKeys = []string{
	"global.data_dir",
	"global.config_dir",
	"homeserver.url",
	"homeserver.access_token",
	"homeserver.request_timeout",
	"homeserver.sync_timeout",
	"database.path",
	"database.max_connections",
	"database.busy_timeout_ms",
	"feed.page_size",
	"feed.use_local_index",
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
}

// Loader resolves configuration with precedence defaults < file < env.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile pins an explicit config file path. Without it the loader
// searches $XDG_CONFIG_HOME/feedline, ~/.config/feedline and the working
// directory for config.yaml.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load resolves the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		l.v.AddConfigPath(filepath.Join(xdg, "feedline"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		l.v.AddConfigPath(filepath.Join(home, ".config", "feedline"))
	}
	l.v.AddConfigPath(".")

	l.v.SetEnvPrefix("FEEDLINE")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	defaults := defaultValues(cfg)
	for _, key := range settingKeys {
		l.v.SetDefault(key, defaults[key])
		// Unmarshal ignores unbound env vars on nested structs, so each
		// key is bound explicitly.
		_ = l.v.BindEnv(key, "FEEDLINE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	l.v.AutomaticEnv()

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Unmarshal does not merge env values over file values on nested
	// structs; pull the string settings through viper directly.
	cfg.Homeserver.URL = l.v.GetString("homeserver.url")
	cfg.Homeserver.AccessToken = l.v.GetString("homeserver.access_token")
	cfg.Global.DataDir = l.v.GetString("global.data_dir")
	cfg.Global.ConfigDir = l.v.GetString("global.config_dir")
	cfg.Database.Path = l.v.GetString("database.path")
	cfg.Logging.Level = l.v.GetString("logging.level")
	cfg.Logging.Format = l.v.GetString("logging.format")
	cfg.Logging.File = l.v.GetString("logging.file")

	expandPaths(cfg)

	// Validation is the caller's job: index-only commands work without a
	// homeserver section.
	return cfg, nil
}

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	if err := l.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && l.configFile == "" {
			return nil
		}
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func defaultValues(cfg *Config) map[string]any {
	return map[string]any{
		"global.data_dir":            cfg.Global.DataDir,
		"global.config_dir":          cfg.Global.ConfigDir,
		"homeserver.url":             cfg.Homeserver.URL,
		"homeserver.access_token":    cfg.Homeserver.AccessToken,
		"homeserver.request_timeout": cfg.Homeserver.RequestTimeout,
		"homeserver.sync_timeout":    cfg.Homeserver.SyncTimeout,
		"database.path":              cfg.Database.Path,
		"database.max_connections":   cfg.Database.MaxConnections,
		"database.busy_timeout_ms":   cfg.Database.BusyTimeoutMs,
		"feed.page_size":             cfg.Feed.PageSize,
		"feed.use_local_index":       cfg.Feed.UseLocalIndex,
		"logging.level":              cfg.Logging.Level,
		"logging.format":             cfg.Logging.Format,
		"logging.file":               cfg.Logging.File,
		"logging.enable_caller":      cfg.Logging.EnableCaller,
	}
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Database.Path = expandTilde(cfg.Database.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration from the default search paths.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}
