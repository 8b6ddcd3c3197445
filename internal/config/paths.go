// XDG Base Directory paths for crynn.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "crynn"

// ConfigDir returns the configuration directory ($XDG_CONFIG_HOME/crynn).
func ConfigDir() (string, error) {
	if dev := devDir(); dev != "" {
		return dev, nil
	}
	return filepath.Join(xdg.ConfigHome, appName), nil
}

// StateDir returns the state directory ($XDG_STATE_HOME/crynn) where the
// session snapshot lives.
func StateDir() (string, error) {
	if dev := devDir(); dev != "" {
		return dev, nil
	}
	return filepath.Join(xdg.StateHome, appName), nil
}

// DataDir returns the data directory ($XDG_DATA_HOME/crynn).
func DataDir() (string, error) {
	if dev := devDir(); dev != "" {
		return dev, nil
	}
	return filepath.Join(xdg.DataHome, appName), nil
}

// SessionFile returns the default path of the JSON session snapshot.
func SessionFile() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// SessionDatabase returns the default path of the SQLite session store.
func SessionDatabase() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.db"), nil
}

// EnsureDirectories creates the config, data, and state directories.
func EnsureDirectories() error {
	for _, fn := range []func() (string, error){ConfigDir, DataDir, StateDir} {
		dir, err := fn()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return err
		}
	}
	return nil
}

// devDir returns a .dev directory under the working directory when
// running with ENV=dev, keeping development state out of $HOME.
func devDir() string {
	if os.Getenv("ENV") != "dev" {
		return ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".dev", appName)
}
