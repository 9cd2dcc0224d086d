package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List every record in the resume store",
	Long: `Status reads the resume store directly (the same records Manager.Init
replays at startup) and prints each task's id, status, and committed
chunk count. Manager.Init turns every non-terminal record into a
waiting-for-file placeholder; uploadctl has no command that rebinds one.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openResumeStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.List(context.Background())
	if err != nil {
		return fmt.Errorf("list resume store: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tFILE\tSTATUS\tCHUNKS DONE\tSIZE")
	for _, rec := range records {
		chunks := len(rec.CompletedChunkHashes)
		total := 0
		if rec.ChunkSize > 0 {
			total = int((rec.Size + rec.ChunkSize - 1) / rec.ChunkSize)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
			rec.TaskID, rec.FileName, rec.Status, chunks, total, formatBytes(rec.Size))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d records\n", len(records))
	return nil
}
