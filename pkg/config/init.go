package config

import (
	"fmt"
	"os"
)

// InitConfig writes a default configuration file to the default location,
// refusing to overwrite an existing one unless force is true. Returns the
// path written.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config: %s already exists (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()
	if err := SaveConfig(cfg, path); err != nil {
		return "", fmt.Errorf("config: init: %w", err)
	}
	return path, nil
}
