package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - RRSYNC_CONFIG_PATH: config file location (default: ~/.config/rrsync.toml)
//   - RRSYNC_HOME: base directory for rrsync data (default: ~/.local/share/rrsync)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking RRSYNC_CONFIG_PATH env var first,
// then falling back to the default ~/.config/rrsync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("RRSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "rrsync.toml"), nil
}

// getBaseDir returns the base directory for rrsync data, checking RRSYNC_HOME env var first,
// then falling back to the XDG default ~/.local/share/rrsync.
func getBaseDir() (string, error) {
	if path := os.Getenv("RRSYNC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "rrsync"), nil
}

// LoadDotEnv loads variables from the given .env files (default ./.env)
// unless RRSYNC_ENV is "production". Variables already set are kept and
// missing files are ignored.
func LoadDotEnv(files ...string) error {
	if os.Getenv("RRSYNC_ENV") == "production" {
		return nil
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
