package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/chunkflow/pkg/adapter"
	"github.com/marmos91/chunkflow/pkg/manager"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/testutil"
)

// defaultResumeDir is used when --resume-dir is not set: a directory in the
// current working directory so repeated invocations in the same shell
// share one resume store.
const defaultResumeDir = ".uploadctl"

// openResumeStore opens the Badger resume store backing this run, creating
// its directory if necessary.
func openResumeStore() (resume.Store, error) {
	dir := resumeDir
	if dir == "" {
		dir = defaultResumeDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploadctl: create resume dir %s: %w", dir, err)
	}
	return resume.OpenBadgerStore(dir)
}

// newManager builds a Manager sharing one process-lifetime in-memory
// Request Adapter and the Badger resume store at --resume-dir, then
// replays any unfinished tasks from the store.
func newManager() (*manager.Manager, error) {
	st, err := openResumeStore()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	m := manager.New(newSharedAdapter(), st, cfg.ManagerConfig())
	if err := m.Init(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("uploadctl: init manager: %w", err)
	}
	return m, nil
}

// newSharedAdapter constructs the in-memory Request Adapter every task in
// this process uploads through. It only "durably" stores chunk bytes for
// the life of the process; a real deployment would replace it with an
// HTTP-backed adapter without changing anything else in this package.
func newSharedAdapter() *testutil.Adapter {
	return testutil.NewAdapter()
}

// openLocalFile resolves path to an absolute form and wraps it as a
// FileHandle for CreateTask.
func openLocalFile(path string) (*adapter.LocalFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("uploadctl: resolve path %s: %w", path, err)
	}
	return adapter.OpenLocalFile(abs)
}
