package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateConfig performs validation of configuration values.
func validateConfig(config *Config) error {
	var validationErrors []string

	validationErrors = append(validationErrors, validateGeneral(config)...)
	validationErrors = append(validationErrors, validatePool(config)...)
	validationErrors = append(validationErrors, validateSession(config)...)
	validationErrors = append(validationErrors, validateLogging(config)...)

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(validationErrors, "\n  - "))
	}

	return nil
}

func validateGeneral(config *Config) []string {
	var validationErrors []string

	if config.Homepage != "" {
		if _, err := url.Parse(config.Homepage); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("homepage is not a valid URL: %v", err))
		}
	}

	if config.DefaultSearch != "" && !strings.Contains(config.DefaultSearch, "%s") {
		validationErrors = append(validationErrors, "default_search must contain a %s placeholder for the query")
	}

	switch config.Theme {
	case ThemeDefault, ThemePreferDark, ThemePreferLight, "":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("theme must be one of default, prefer-dark, prefer-light (got %q)", config.Theme))
	}

	return validationErrors
}

func validatePool(config *Config) []string {
	var validationErrors []string

	if config.Pool.MaxSize < 0 {
		validationErrors = append(validationErrors, "pool.max_size must be non-negative")
	}
	if config.Pool.MaxSize > 64 {
		validationErrors = append(validationErrors, "pool.max_size must be 64 or less")
	}

	return validationErrors
}

func validateSession(config *Config) []string {
	var validationErrors []string

	if config.Session.QuietIntervalMs < 0 {
		validationErrors = append(validationErrors, "session.quiet_interval_ms must be non-negative")
	}

	switch strings.ToLower(config.Session.Store) {
	case "", "file", "sqlite":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("session.store must be file or sqlite (got %q)", config.Session.Store))
	}

	return validationErrors
}

func validateLogging(config *Config) []string {
	var validationErrors []string

	switch strings.ToLower(config.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.level must be one of trace, debug, info, warn, error (got %q)", config.Logging.Level))
	}

	switch strings.ToLower(config.Logging.Format) {
	case "", "console", "json":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.format must be console or json (got %q)", config.Logging.Format))
	}

	return validationErrors
}
