package state

import (
	"os"
	"path/filepath"
)

const AppName = "pip-accel"

// AppDir is the per-user data directory, ~/.pip-accel by default.
func AppDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+AppName), nil
}

func ConfigPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// BinaryCacheDir holds cached distribution archives when no explicit
// directory is configured.
func BinaryCacheDir() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "binaries"), nil
}
