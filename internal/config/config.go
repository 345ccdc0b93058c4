// Package config handles application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. REMINDAT_SYNC_INTERVAL
const EnvPrefix = "REMINDAT_"

// Config represents the application configuration
type Config struct {
	DataDir   string          `koanf:"data_dir" yaml:"data_dir"`
	Verbose   bool            `koanf:"verbose" yaml:"verbose"`
	OAuth     OAuthConfig     `koanf:"oauth" yaml:"oauth"`
	Drive     DriveConfig     `koanf:"drive" yaml:"drive"`
	Sync      SyncConfig      `koanf:"sync" yaml:"sync"`
	Logging   LoggingConfig   `koanf:"logging" yaml:"logging"`
	Analytics AnalyticsConfig `koanf:"analytics" yaml:"analytics"`
	Notify    NotifyConfig    `koanf:"notifications" yaml:"notifications"`
}

// OAuthConfig holds the authorization flow settings
type OAuthConfig struct {
	RedirectPort int    `koanf:"redirect_port" yaml:"redirect_port"`
	FolderID     string `koanf:"folder_id" yaml:"folder_id"` // default folder for oauth setup
	AuthURL      string `koanf:"auth_url" yaml:"auth_url"`
	TokenURL     string `koanf:"token_url" yaml:"token_url"`
}

// DriveConfig holds Drive endpoint settings
type DriveConfig struct {
	APIBaseURL    string `koanf:"api_base_url" yaml:"api_base_url"`
	UploadBaseURL string `koanf:"upload_base_url" yaml:"upload_base_url"`
}

// SyncConfig holds background synchronization settings
type SyncConfig struct {
	Interval   string `koanf:"interval" yaml:"interval"`       // refresh cadence of the daemon, e.g. "5m"
	WatchLocal bool   `koanf:"watch_local" yaml:"watch_local"` // push local edits made by other processes
	DebounceMs int    `koanf:"debounce_ms" yaml:"debounce_ms"`
	Workers    int    `koanf:"workers" yaml:"workers"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	BackgroundEnabled bool `koanf:"background_enabled" yaml:"background_enabled"`
}

// AnalyticsConfig holds sync journal settings
type AnalyticsConfig struct {
	Enabled       bool `koanf:"enabled" yaml:"enabled"`
	RetentionDays int  `koanf:"retention_days" yaml:"retention_days"`
}

// NotifyConfig holds desktop notification settings for the daemon
type NotifyConfig struct {
	Enabled     bool `koanf:"enabled" yaml:"enabled"`
	OnSyncError bool `koanf:"on_sync_error" yaml:"on_sync_error"`
	OnRefresh   bool `koanf:"on_refresh" yaml:"on_refresh"`
}

// Defaults returns the default configuration as a koanf map
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"data_dir":                    GetDataDir(),
		"verbose":                     false,
		"oauth.redirect_port":         8085,
		"oauth.folder_id":             "",
		"oauth.auth_url":              "https://accounts.google.com/o/oauth2/auth",
		"oauth.token_url":             "https://oauth2.googleapis.com/token",
		"drive.api_base_url":          "https://www.googleapis.com",
		"drive.upload_base_url":       "https://www.googleapis.com",
		"sync.interval":               "5m",
		"sync.watch_local":            true,
		"sync.debounce_ms":            1000,
		"sync.workers":                2,
		"logging.background_enabled":  true,
		"analytics.enabled":           true,
		"analytics.retention_days":    365,
		"notifications.enabled":       false,
		"notifications.on_sync_error": true,
		"notifications.on_refresh":    false,
	}
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(Defaults(), "."), nil)
	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return &cfg
}

// DefaultConfigPath returns the XDG location of config.yaml
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load layers defaults, the YAML file at configPath (default XDG path if
// empty) and REMINDAT_ environment variables. A .env file in the working
// directory is loaded into the environment first. If the config file doesn't
// exist, it is created with the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	configPath = ExpandPath(configPath)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := DefaultConfig().save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	// REMINDAT_SYNC_DEBOUNCE_MS -> sync.debounce_ms: the first underscore
	// after the prefix separates the section from the key.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)

	return &cfg, nil
}

var sections = []string{"oauth", "drive", "sync", "logging", "analytics", "notifications"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

const configHeader = `# remindat configuration
#
# Every key can be overridden with an environment variable, e.g.
#   REMINDAT_DATA_DIR=/tmp/reminders
#   REMINDAT_SYNC_INTERVAL=10m
# OAuth client credentials are stored separately in oauth_credentials.json
# inside data_dir (see 'remindat oauth setup').

`

// save writes the configuration to the specified path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := c.YAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(configHeader+content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// YAML renders the configuration as YAML
func (c *Config) YAML() (string, error) {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}

	if c.OAuth.RedirectPort <= 0 || c.OAuth.RedirectPort > 65535 {
		return fmt.Errorf("invalid oauth.redirect_port: %d", c.OAuth.RedirectPort)
	}

	interval, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return fmt.Errorf("invalid duration for sync.interval: %q", c.Sync.Interval)
	}
	if interval < 30*time.Second {
		return fmt.Errorf("sync.interval must be at least 30s, got %q", c.Sync.Interval)
	}

	if c.Sync.DebounceMs < 0 {
		return fmt.Errorf("sync.debounce_ms must not be negative, got %d", c.Sync.DebounceMs)
	}

	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers)
	}

	return nil
}

// GetSyncInterval returns the daemon refresh interval.
// Returns 5 minutes if the configured value does not parse.
func (c *Config) GetSyncInterval() time.Duration {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetDebounce returns the watcher debounce duration.
// Returns 1 second if not configured.
func (c *Config) GetDebounce() time.Duration {
	if c.Sync.DebounceMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Sync.DebounceMs) * time.Millisecond
}

// GetAnalyticsRetentionDays returns the journal retention period in days.
// Returns 365 (default) if not configured.
func (c *Config) GetAnalyticsRetentionDays() int {
	if c.Analytics.RetentionDays <= 0 {
		return 365
	}
	return c.Analytics.RetentionDays
}

// JournalPath returns the location of the sync journal database
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "remindat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "remindat")
	}
	return filepath.Join(home, fallbackPath, "remindat")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
