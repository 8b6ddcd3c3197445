// Package config provides configuration management for crynn with Viper integration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// File permission constants
const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Config represents the complete configuration for crynn.
type Config struct {
	Homepage      string          `mapstructure:"homepage" toml:"homepage" json:"homepage"`
	DefaultSearch string          `mapstructure:"default_search" toml:"default_search" json:"default_search"`
	SendDNT       bool            `mapstructure:"send_do_not_track" toml:"send_do_not_track" json:"send_do_not_track"`
	Theme         Theme           `mapstructure:"theme" toml:"theme" json:"theme"`
	Pool          PoolConfig      `mapstructure:"pool" toml:"pool" json:"pool"`
	Session       SessionConfig   `mapstructure:"session" toml:"session" json:"session"`
	Filtering     FilteringConfig `mapstructure:"filtering" toml:"filtering" json:"filtering"`
	Logging       LoggingConfig   `mapstructure:"logging" toml:"logging" json:"logging"`
}

// Theme selects the preferred color scheme.
type Theme string

const (
	ThemeDefault     Theme = "default"
	ThemePreferDark  Theme = "prefer-dark"
	ThemePreferLight Theme = "prefer-light"
)

// PoolConfig controls the web view pool.
type PoolConfig struct {
	MaxSize int  `mapstructure:"max_size" toml:"max_size" json:"max_size"`
	Prewarm bool `mapstructure:"prewarm" toml:"prewarm" json:"prewarm"`
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	Restore         bool   `mapstructure:"restore" toml:"restore" json:"restore"`
	QuietIntervalMs int    `mapstructure:"quiet_interval_ms" toml:"quiet_interval_ms" json:"quiet_interval_ms"`
	Store           string `mapstructure:"store" toml:"store" json:"store"` // "file" or "sqlite"
}

// FilteringConfig controls content filtering.
type FilteringConfig struct {
	Enabled   bool     `mapstructure:"enabled" toml:"enabled" json:"enabled"`
	RuleFiles []string `mapstructure:"rule_files" toml:"rule_files" json:"rule_files"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" toml:"level" json:"level"`
	Format string `mapstructure:"format" toml:"format" json:"format"` // "console" or "json"
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config         *Config
	viper          *viper.Viper
	mu             sync.RWMutex
	callbacks      []func(*Config)
	watching       bool
	skipNextReload bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config directory: %w\nCheck XDG_CONFIG_HOME environment variable or HOME directory", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Current directory for development

	v.SetEnvPrefix("CRYNN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for env vars that predate the nested layout.
	if err := v.BindEnv("logging.level", "CRYNN_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind CRYNN_LOG_LEVEL: %w", err)
	}
	if err := v.BindEnv("logging.format", "CRYNN_LOG_FORMAT"); err != nil {
		return nil, fmt.Errorf("failed to bind CRYNN_LOG_FORMAT: %w", err)
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	m.setDefaults()

	if err := m.readConfigFile(); err != nil {
		return err
	}

	config, err := m.unmarshalConfig()
	if err != nil {
		return err
	}
	normalizeConfig(config)

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) readConfigFile() error {
	if err := m.viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			if createErr := m.createDefaultConfig(); createErr != nil {
				configDir, _ := ConfigDir()
				return fmt.Errorf(
					"failed to create default config at %s: %w\nTry creating the directory manually or check permissions",
					configDir,
					createErr,
				)
			}
			if rereadErr := m.viper.ReadInConfig(); rereadErr != nil {
				return fmt.Errorf(
					"failed to read newly created config file: %w\nThe config file was created but couldn't be read. Please check the file format",
					rereadErr,
				)
			}
		} else {
			configFile := m.viper.ConfigFileUsed()
			if configFile == "" {
				configDir, _ := ConfigDir()
				configFile = filepath.Join(configDir, "config.toml")
			}
			return fmt.Errorf("failed to read config file at %s: %w\nCheck the file format (must be valid TOML) and permissions", configFile, err)
		}
	}
	return nil
}

func (m *Manager) unmarshalConfig() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		configFile := m.viper.ConfigFileUsed()
		return nil, fmt.Errorf(
			"failed to parse config file at %s: %w\nCheck for syntax errors, invalid values, or type mismatches",
			configFile,
			err,
		)
	}
	return config, nil
}

func normalizeConfig(config *Config) {
	switch Theme(strings.ToLower(string(config.Theme))) {
	case ThemePreferDark:
		config.Theme = ThemePreferDark
	case ThemePreferLight:
		config.Theme = ThemePreferLight
	default:
		config.Theme = ThemeDefault
	}

	switch strings.ToLower(config.Session.Store) {
	case "sqlite":
		config.Session.Store = "sqlite"
	default:
		config.Session.Store = "file"
	}

	config.Homepage = strings.TrimSpace(config.Homepage)
	config.DefaultSearch = strings.TrimSpace(config.DefaultSearch)
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// Save saves the provided configuration to disk and updates Viper.
func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// Validate before writing so callers get immediate errors.
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	path := m.viper.ConfigFileUsed()
	if path == "" {
		path = filepath.Join(configDir, "config.toml")
	}

	m.skipNextReload = true
	if err := WriteConfigFile(cfg, path); err != nil {
		m.skipNextReload = false
		return err
	}

	m.config = cfg
	return nil
}
