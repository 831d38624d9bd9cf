package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// memoryDatabase is SQLite's in-memory path and is never expanded.
const memoryDatabase = ":memory:"

// DefaultDatabasePath is where the ledger lives unless configured otherwise.
func DefaultDatabasePath() string {
	return filepath.Join("~", ".local", "share", "ledger", "ledger.db")
}

// DefaultConfigDir is searched for config.yaml.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ledger"), nil
}

// ExpandPath resolves a leading ~ and $VAR references. The SQLite
// in-memory path is returned unchanged.
func ExpandPath(path string) string {
	if path == "" || path == memoryDatabase {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}
