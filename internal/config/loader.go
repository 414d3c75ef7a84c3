package config

import (
	"os"
	"path/filepath"
)

const appDir = "deskcap"

// Loader locates the settings file.
type Loader struct {
	Version      string // Build version, used to determine dev mode
	OverridePath string // Set at compile time or by -config
}

// NewLoader creates a new Loader.
func NewLoader(version string, overridePath string) *Loader {
	return &Loader{
		Version:      version,
		OverridePath: overridePath,
	}
}

// GetConfigPath returns the first existing settings file, or an empty string.
func (l *Loader) GetConfigPath() string {
	// 1. Explicit override
	if l.OverridePath != "" {
		if _, err := os.Stat(l.OverridePath); err == nil {
			return l.OverridePath
		}
	}

	// 2. Local run directory (dev mode)
	if l.Version == "dev" {
		wd, _ := os.Getwd()
		localPath := filepath.Join(wd, ".deskcap.yaml")
		if _, err := os.Stat(localPath); err == nil {
			return localPath
		}
	}

	// 3. XDG config path
	if path := DefaultPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Path returns the settings file to use, falling back to where a new one
// should be created.
func (l *Loader) Path() string {
	if path := l.GetConfigPath(); path != "" {
		return path
	}
	if l.OverridePath != "" {
		return l.OverridePath
	}
	return DefaultPath()
}

// Dir returns $XDG_CONFIG_HOME/deskcap, defaulting to ~/.config/deskcap.
func Dir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDir)
}

// DefaultPath is the settings file inside Dir.
func DefaultPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "settings.yaml")
}

// EnvPath is the optional dotenv file holding environment overrides.
func EnvPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "env")
}
