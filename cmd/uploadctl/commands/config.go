package commands

import "github.com/marmos91/chunkflow/pkg/config"

// loadConfig loads the engine configuration from --config, falling back to
// the default search path and then to built-in defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(GetConfigFile())
}
