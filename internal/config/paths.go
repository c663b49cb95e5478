package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDir is the configuration directory name
const AppDir = "hdaget"

// ConfigDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\hdaget
//   - Unix: ~/.config/hdaget (XDG standard)
func ConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDir)
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppDir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", AppDir)
	}
	return ""
}

// DefaultConfigPath returns the default config file path, or "" when no
// config directory can be determined.
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.ini")
}

// DefaultKeyPath returns where 'config init' stores the encoded api key.
func DefaultKeyPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "apikey")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0700)
}
