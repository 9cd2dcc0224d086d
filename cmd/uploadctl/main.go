// Command uploadctl drives the chunked upload engine from a terminal: it
// slices a local file, uploads it through the in-memory Request Adapter,
// and reports progress, demonstrating every core module end to end.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/chunkflow/cmd/uploadctl/commands"

	// Import prometheus metrics to register its init() constructors.
	_ "github.com/marmos91/chunkflow/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
