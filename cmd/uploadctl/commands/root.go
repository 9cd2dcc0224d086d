// Package commands implements the uploadctl CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile   string
	resumeDir string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "uploadctl",
	Short: "uploadctl - drive the chunked upload engine from the command line",
	Long: `uploadctl exercises the chunked upload engine end-to-end against the
in-memory Request Adapter: it slices a local file into chunks, hashes and
uploads them with bounded concurrency, and reports live progress.

During "uploadctl upload", Ctrl+C toggles pause/resume and SIGTERM cancels,
so one run exercises the task's whole lifecycle. "uploadctl status" inspects
the resume store's persisted records afterward.

Use "uploadctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/chunkflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&resumeDir, "resume-dir", "", "directory holding the Badger resume store for this run (default: .uploadctl in the current directory)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(statusCmd)
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
