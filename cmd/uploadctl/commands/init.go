package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/chunkflow/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample uploadctl configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/chunkflow/config.yaml. Use --config to specify a custom
path.

Examples:
  # Initialize with default location
  uploadctl init

  # Initialize with custom path
  uploadctl init --config ./chunkflow.yaml

  # Force overwrite an existing config
  uploadctl init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		if !initForce {
			if _, err := os.Stat(configFile); err == nil {
				return fmt.Errorf("config: %s already exists (use --force to overwrite)", configFile)
			}
		}
		cfg := config.GetDefaultConfig()
		if err := config.SaveConfig(cfg, configFile); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Printf("  2. Upload a file with: uploadctl upload --config %s <path>\n", configPath)
	return nil
}
