package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/chunkflow/pkg/task"
	"github.com/spf13/cobra"
)

var (
	uploadChunkSize   uint64
	uploadConcurrency int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a local file through the chunked upload engine",
	Long: `Upload slices the file at <path> into chunks, hashes it while
chunks upload concurrently, and prints live progress until the upload
finishes, fails, or is cancelled.

Ctrl+C toggles pause/resume (state is persisted to the resume store on
every pause); SIGTERM cancels outright. "uploadctl status" inspects the
resume store's records once the process exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().Uint64Var(&uploadChunkSize, "chunk-size", 0, "preferred initial chunk size in bytes (0 uses the config default)")
	uploadCmd.Flags().IntVar(&uploadConcurrency, "concurrency", 0, "max chunks in flight for this task (0 uses the config default)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]

	file, err := openLocalFile(path)
	if err != nil {
		return err
	}

	m, err := newManager()
	if err != nil {
		return err
	}
	defer m.Close()

	opts := task.Options{}
	if uploadChunkSize > 0 {
		opts.ChunkSize = &uploadChunkSize
	}
	if uploadConcurrency > 0 {
		opts.Concurrency = &uploadConcurrency
	}

	t, err := m.CreateTask(file, opts)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	fmt.Printf("Task %s: uploading %s (%s)\n", t.ID(), file.Name(), formatBytes(file.Size()))

	done := make(chan struct{})
	reporter := newProgressReporter(t.ID())

	t.On(task.EventHashProgress, func(ev task.Event) {
		reporter.reportHash(ev.HashPercent)
	})
	t.On(task.EventProgress, func(ev task.Event) {
		reporter.reportProgress(ev.Progress)
	})
	t.On(task.EventSuccess, func(ev task.Event) {
		reporter.finish(fmt.Sprintf("done: %s (id %s)", ev.FileURL, ev.FileID))
		close(done)
	})
	t.On(task.EventError, func(ev task.Event) {
		reporter.finish(fmt.Sprintf("failed: %v", ev.Err))
		close(done)
	})
	t.On(task.EventCancel, func(ev task.Event) {
		reporter.finish("cancelled")
		close(done)
	})

	intCh := make(chan os.Signal, 1)
	signal.Notify(intCh, syscall.SIGINT)
	defer signal.Stop(intCh)

	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, syscall.SIGTERM)
	defer signal.Stop(termCh)

	for {
		select {
		case <-done:
			if t.GetStatus() == "error" {
				return fmt.Errorf("upload failed")
			}
			return nil

		case <-intCh:
			if t.GetStatus() == "paused" {
				reporter.finish("resuming")
				if err := t.Resume(); err != nil {
					return fmt.Errorf("resume: %w", err)
				}
			} else {
				reporter.finish("paused (state saved to resume store), Ctrl+C again to resume")
				if err := t.Pause(); err != nil {
					return fmt.Errorf("pause: %w", err)
				}
			}

		case <-termCh:
			reporter.finish("cancelling")
			if err := t.Cancel(); err != nil {
				return fmt.Errorf("cancel: %w", err)
			}
			<-done
			return fmt.Errorf("upload cancelled")
		}
	}
}

// progressReporter renders a single overwriting status line.
type progressReporter struct {
	taskID   string
	lastLine string
}

func newProgressReporter(taskID string) *progressReporter {
	return &progressReporter{taskID: taskID}
}

func (r *progressReporter) reportHash(percent int) {
	r.print(fmt.Sprintf("[%s] hashing... %d%%", r.taskID, percent))
}

func (r *progressReporter) reportProgress(p task.Progress) {
	r.print(fmt.Sprintf("[%s] %5.1f%%  %s/%s  %s/s  chunks %d/%d  eta %s",
		r.taskID, p.Percentage, formatBytes(p.UploadedBytes), formatBytes(p.TotalBytes),
		formatBytes(uint64(p.Speed)), p.UploadedChunks, p.TotalChunks, p.RemainingTime.Round(time.Second)))
}

func (r *progressReporter) finish(msg string) {
	r.print(fmt.Sprintf("[%s] %s", r.taskID, msg))
	fmt.Println()
}

func (r *progressReporter) print(line string) {
	pad := ""
	if len(r.lastLine) > len(line) {
		pad = spaces(len(r.lastLine) - len(line))
	}
	fmt.Printf("\r%s%s", line, pad)
	r.lastLine = line
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
