package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const DefaultServerURL = "http://localhost:8080"

// ClientConfig is the terminal client's TOML file.
type ClientConfig struct {
	ServerURL string `toml:"server_url"`
	Duration  int    `toml:"duration"` // seconds per attempt
}

// Credentials is the session saved after login or registration.
type Credentials struct {
	UserID       string `toml:"user_id"`
	Username     string `toml:"username"`
	Subscription string `toml:"subscription"`
	Token        string `toml:"token"`
}

func (c Credentials) LoggedIn() bool {
	return c.Token != "" && c.UserID != ""
}

// LoadClient reads the client config at path. A missing file yields defaults.
func LoadClient(path string) (ClientConfig, error) {
	cfg := ClientConfig{ServerURL: DefaultServerURL, Duration: 60}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to stat config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 60
	}
	return cfg, nil
}

// LoadCredentials returns empty credentials when none are saved.
func LoadCredentials(path string) (Credentials, error) {
	var c Credentials
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("failed to stat credentials: %w", err)
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return c, nil
}

func SaveCredentials(path string, c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening credentials: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	return nil
}

func ClearCredentials(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
