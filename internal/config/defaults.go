package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration constants
const (
	// General defaults
	defaultHomepage      = "about:blank"
	defaultSearchEngine  = "https://duckduckgo.com/?q=%s"
	defaultTheme         = ThemeDefault
	defaultSendDNT       = false

	// Pool defaults
	defaultPoolMaxSize = 4
	defaultPoolPrewarm = true

	// Session defaults
	defaultSessionRestore  = true
	defaultQuietIntervalMs = 600
	defaultSessionStore    = "file"

	// Filtering defaults
	defaultFilteringEnabled = true

	// Logging defaults
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
)

func (m *Manager) setDefaults() {
	m.viper.SetDefault("homepage", defaultHomepage)
	m.viper.SetDefault("default_search", defaultSearchEngine)
	m.viper.SetDefault("send_do_not_track", defaultSendDNT)
	m.viper.SetDefault("theme", string(defaultTheme))

	m.viper.SetDefault("pool.max_size", defaultPoolMaxSize)
	m.viper.SetDefault("pool.prewarm", defaultPoolPrewarm)

	m.viper.SetDefault("session.restore", defaultSessionRestore)
	m.viper.SetDefault("session.quiet_interval_ms", defaultQuietIntervalMs)
	m.viper.SetDefault("session.store", defaultSessionStore)

	m.viper.SetDefault("filtering.enabled", defaultFilteringEnabled)
	m.viper.SetDefault("filtering.rule_files", []string{})

	m.viper.SetDefault("logging.level", defaultLogLevel)
	m.viper.SetDefault("logging.format", defaultLogFormat)
}

// DefaultConfig returns a config populated with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Homepage:      defaultHomepage,
		DefaultSearch: defaultSearchEngine,
		SendDNT:       defaultSendDNT,
		Theme:         defaultTheme,
		Pool: PoolConfig{
			MaxSize: defaultPoolMaxSize,
			Prewarm: defaultPoolPrewarm,
		},
		Session: SessionConfig{
			Restore:         defaultSessionRestore,
			QuietIntervalMs: defaultQuietIntervalMs,
			Store:           defaultSessionStore,
		},
		Filtering: FilteringConfig{
			Enabled:   defaultFilteringEnabled,
			RuleFiles: []string{},
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// createDefaultConfig writes a default config.toml and its JSON schema.
func (m *Manager) createDefaultConfig() error {
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, dirPerm); err != nil {
		return err
	}

	path := filepath.Join(configDir, "config.toml")
	if err := WriteConfigFile(DefaultConfig(), path); err != nil {
		return err
	}

	// Schema generation failing should not block startup.
	_ = GenerateSchemaFile()

	return nil
}

// EncodeTOML renders the configuration as TOML.
func EncodeTOML(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)

	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfigFile encodes the configuration as TOML and writes it to path.
func WriteConfigFile(cfg *Config, path string) error {
	data, err := EncodeTOML(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
