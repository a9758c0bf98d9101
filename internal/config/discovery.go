package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "ROLLCALL_CONFIG"

// Discover finds the config file by checking standard locations.
// Priority order: explicit path, $ROLLCALL_CONFIG, ~/.config/rollcall/config.yaml,
// /etc/rollcall/config.yaml, ./config.yaml.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	for _, candidate := range candidatePaths() {
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/rollcall/config.yaml, /etc/rollcall/config.yaml, ./config.yaml)", EnvConfigPath)
}

func candidatePaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "rollcall", "config.yaml"))
	}
	return append(paths, "/etc/rollcall/config.yaml", "./config.yaml")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
