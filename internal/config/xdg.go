package config

import (
	"os"
	"path/filepath"
)

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGStateHome returns the XDG state home or a default fallback.
func XDGStateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "state")
}

func DefaultClientConfigPath() string {
	return filepath.Join(XDGConfigHome(), "speedtype", "config.toml")
}

func DefaultCredentialsPath() string {
	return filepath.Join(XDGConfigHome(), "speedtype", "credentials.toml")
}

func DefaultLogPath() string {
	return filepath.Join(XDGStateHome(), "speedtype", "speedtype.log")
}
