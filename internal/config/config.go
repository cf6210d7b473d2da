// Package config resolves docfiler's on-disk locations and runtime settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "docfiler"

// GetDataDir resolves the base directory for all docfiler storage. DOCFILER_DIR
// wins, then the XDG data home, then ~/.local/share.
func GetDataDir() string {
	if explicit := os.Getenv("DOCFILER_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// GetDBPath returns the absolute path to the SQLite database file.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "index.db")
}

// GetObjectsDir returns the directory used by the file-backed store.
func GetObjectsDir() string {
	return filepath.Join(GetDataDir(), "objects")
}

// GetConfigPath returns the location of the optional HCL settings file.
func GetConfigPath() string {
	if explicit := os.Getenv("DOCFILER_CONFIG"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	configHome := xdg.ConfigHome
	if configHome == "" {
		home := xdg.Home
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Join(configHome, appName, "config.hcl")
}
