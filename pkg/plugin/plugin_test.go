package plugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/chunkflow/pkg/manager"
	"github.com/marmos91/chunkflow/pkg/plugin"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/task"
	"github.com/marmos91/chunkflow/pkg/testutil"
)

// recordingPlugin captures every hook invocation for assertions.
type recordingPlugin struct {
	plugin.Base
	installed   bool
	created     int
	started     int
	succeeded   int
	progressLog []task.Progress
}

func (p *recordingPlugin) Install(plugin.Manager)          { p.installed = true }
func (p *recordingPlugin) OnTaskCreated(*task.Task)         { p.created++ }
func (p *recordingPlugin) OnTaskStart(*task.Task)           { p.started++ }
func (p *recordingPlugin) OnTaskProgress(t *task.Task, pr task.Progress) {
	p.progressLog = append(p.progressLog, pr)
}
func (p *recordingPlugin) OnTaskSuccess(*task.Task, string, string) { p.succeeded++ }

// panickingPlugin verifies the manager never lets a plugin panic affect
// task state or other plugins.
type panickingPlugin struct {
	plugin.Base
}

func (panickingPlugin) OnTaskStart(*task.Task) { panic("boom") }

func waitFor(t *testing.T, deadline time.Duration, cond func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", deadline)
	}
}

func TestPluginLifecycleHooksFire(t *testing.T) {
	ad := testutil.NewAdapter()
	st := resume.NewMemoryStore()
	cfg := manager.DefaultConfig()
	cfg.Task.RetryDelay = 5 * time.Millisecond
	cfg.Task.VerifyBatchWindow = 5 * time.Millisecond

	m := manager.New(ad, st, cfg)
	_ = m.Init(context.Background())

	rec := &recordingPlugin{}
	m.Use(rec)
	if !rec.installed {
		t.Fatalf("expected Install to be called synchronously by Use")
	}

	file := testutil.NewFileHandle("plugin.bin", make([]byte, 4096), "application/octet-stream", 0)
	tk, err := m.CreateTask(file, task.Options{})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if rec.created != 1 {
		t.Fatalf("OnTaskCreated called %d times, want 1", rec.created)
	}
	if rec.started != 1 {
		t.Fatalf("OnTaskStart called %d times, want 1", rec.started)
	}
	if rec.succeeded != 1 {
		t.Fatalf("OnTaskSuccess called %d times, want 1", rec.succeeded)
	}
	if len(rec.progressLog) == 0 {
		t.Fatalf("expected at least one progress callback")
	}
}

func TestPanickingPluginDoesNotAffectTaskOrOtherPlugins(t *testing.T) {
	ad := testutil.NewAdapter()
	st := resume.NewMemoryStore()
	cfg := manager.DefaultConfig()
	cfg.Task.RetryDelay = 5 * time.Millisecond

	m := manager.New(ad, st, cfg)
	_ = m.Init(context.Background())

	m.Use(panickingPlugin{})
	rec := &recordingPlugin{}
	m.Use(rec)

	file := testutil.NewFileHandle("panic.bin", make([]byte, 1024), "application/octet-stream", 0)
	tk, err := m.CreateTask(file, task.Options{})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if rec.started != 1 {
		t.Fatalf("second plugin's OnTaskStart should still fire despite the first panicking, got %d", rec.started)
	}
}
