// Package manager implements the Upload Manager: the fleet coordinator that
// creates Upload Tasks, bounds how many run concurrently, reconstructs
// unfinished tasks from the Resume Store on startup, and fans lifecycle
// events out to installed plugins.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/chunkflow/internal/logger"
	"github.com/marmos91/chunkflow/pkg/adapter"
	"github.com/marmos91/chunkflow/pkg/limiter"
	"github.com/marmos91/chunkflow/pkg/metrics"
	"github.com/marmos91/chunkflow/pkg/plugin"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/task"
	"github.com/marmos91/chunkflow/pkg/uploaderrors"
)

// entry is one task slot: either a live Task, or — after Init reconstructs a
// non-terminal record before a file has been re-selected — a placeholder
// waiting for resumeTask to rebind it to a FileHandle.
type entry struct {
	t       *task.Task
	waiting bool
	record  resume.Record // valid only while waiting
}

// Manager coordinates a bounded set of Tasks sharing one Adapter and Resume
// Store. Every exported method is safe for concurrent use.
type Manager struct {
	ad  adapter.Adapter
	st  resume.Store
	cfg Config

	mu      sync.Mutex
	tasks   map[string]*entry
	order   []string
	plugins []plugin.Plugin
	closed  bool

	taskLimiter *limiter.Limiter[struct{}]
}

// New constructs a Manager. Init must be called once before createTask to
// reconstruct any unfinished tasks from a prior session.
func New(ad adapter.Adapter, st resume.Store, cfg Config) *Manager {
	if cfg.MaxConcurrentTasks < 1 {
		cfg.MaxConcurrentTasks = 1
	}
	return &Manager{
		ad:          ad,
		st:          st,
		cfg:         cfg,
		tasks:       make(map[string]*entry),
		taskLimiter: limiter.New[struct{}](cfg.MaxConcurrentTasks),
	}
}

// Init opens the resume store's records and creates a waiting-for-file
// placeholder for every non-terminal one. The host rebinds each by calling
// ResumeTask with a re-selected file whose fingerprint matches.
func (m *Manager) Init(ctx context.Context) error {
	if m.st == nil {
		return nil
	}
	records, err := m.st.List(ctx)
	if err != nil {
		return fmt.Errorf("manager: init: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if rec.Status.IsTerminal() {
			continue
		}
		m.tasks[rec.TaskID] = &entry{waiting: true, record: rec}
		m.order = append(m.order, rec.TaskID)
	}
	return nil
}

// CreateTask generates a fresh task ID, persists its initial record, wires
// its events to installed plugins, and — if autoStart resolves true —
// enqueues it on the task-level Limiter.
func (m *Manager) CreateTask(file adapter.FileHandle, opts task.Options) (*task.Task, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, uploaderrors.ErrStoreClosed
	}
	cfg := m.cfg.Task
	m.mu.Unlock()

	id := uuid.NewString()
	t := task.New(id, m.ad, m.st, file, cfg, opts)
	m.wireTask(t)

	m.mu.Lock()
	m.tasks[id] = &entry{t: t}
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.invokePlugins(func(p plugin.Plugin) { p.OnTaskCreated(t) })
	metrics.RecordTaskCreated(m.cfg.Metrics)

	autoStart := cfg.AutoStart
	if opts.AutoStart != nil {
		autoStart = *opts.AutoStart
	}
	if autoStart {
		m.dispatch(t, t.Start)
	}
	return t, nil
}

// ResumeTask rebinds a waiting-for-file placeholder to a re-selected file.
// The file's fingerprint must match the persisted record's. When
// AutoResumeUnfinished is set, a record that was uploading or paused is
// resumed under the task-level Limiter.
func (m *Manager) ResumeTask(taskID string, file adapter.FileHandle) (*task.Task, error) {
	m.mu.Lock()
	e, ok := m.tasks[taskID]
	if !ok || !e.waiting {
		m.mu.Unlock()
		return nil, fmt.Errorf("manager: task %q is not waiting for a file", taskID)
	}
	rec := e.record
	cfg := m.cfg.Task
	m.mu.Unlock()

	t, err := task.Restore(taskID, m.ad, m.st, file, rec, cfg)
	if err != nil {
		return nil, err
	}
	m.wireTask(t)

	m.mu.Lock()
	m.tasks[taskID] = &entry{t: t}
	m.mu.Unlock()

	metrics.RecordTaskResumed(m.cfg.Metrics)
	if m.cfg.AutoResumeUnfinished && (rec.Status == resume.StatusUploading || rec.Status == resume.StatusPaused) {
		m.dispatch(t, t.Resume)
	}
	return t, nil
}

// dispatch runs start (t.Start for a freshly created task, t.Resume for one
// reconstructed from a persisted record) under the task-level Limiter,
// releasing its slot once the task reaches a terminal status.
func (m *Manager) dispatch(t *task.Task, start func() error) {
	done := make(chan struct{})
	id := t.ID()
	var once sync.Once
	release := func() { once.Do(func() { close(done) }) }
	t.On(task.EventSuccess, func(task.Event) { release() })
	t.On(task.EventError, func(task.Event) { release() })
	t.On(task.EventCancel, func(task.Event) { release() })

	m.taskLimiter.Submit(context.Background(), func(ctx context.Context) (struct{}, error) {
		metrics.SetActiveTasks(m.cfg.Metrics, m.taskLimiter.Active())
		defer metrics.SetActiveTasks(m.cfg.Metrics, m.taskLimiter.Active())

		if err := start(); err != nil {
			logger.Warn("manager: task start failed", logger.TaskID(id), logger.Err(err))
			return struct{}{}, err
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
		return struct{}{}, nil
	})
}

// GetTask returns the task with id, if any (including a waiting placeholder,
// for which the second value is still true but the *task.Task is nil).
func (m *Manager) GetTask(id string) (*task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return e.t, true
}

// GetAllTasks returns every live (non-placeholder) task, in creation order.
func (m *Manager) GetAllTasks() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*task.Task, 0, len(m.order))
	for _, id := range m.order {
		if e := m.tasks[id]; e != nil && e.t != nil {
			out = append(out, e.t)
		}
	}
	return out
}

// DeleteTask cancels (if still live) and forgets a task, deleting its
// resume record.
func (m *Manager) DeleteTask(id string) error {
	m.mu.Lock()
	e, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.tasks, id)
	m.removeFromOrderLocked(id)
	m.mu.Unlock()

	if e.t != nil {
		_ = e.t.Cancel()
	}
	if m.st != nil {
		_ = m.st.Delete(context.Background(), id)
	}
	return nil
}

func (m *Manager) removeFromOrderLocked(id string) {
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// PauseAll pauses every pausable task; illegal-state errors are ignored,
// since pausing an already-terminal task is a harmless no-op from the
// caller's point of view.
func (m *Manager) PauseAll() {
	for _, t := range m.GetAllTasks() {
		_ = t.Pause()
	}
}

// ResumeAll resumes every resumable task.
func (m *Manager) ResumeAll() {
	for _, t := range m.GetAllTasks() {
		_ = t.Resume()
	}
}

// CancelAll cancels every non-terminal task.
func (m *Manager) CancelAll() {
	for _, t := range m.GetAllTasks() {
		_ = t.Cancel()
	}
}

// ClearCompletedTasks forgets every task in a terminal status (success,
// error, or cancelled) and deletes its resume record.
func (m *Manager) ClearCompletedTasks() {
	m.mu.Lock()
	var toDelete []string
	for id, e := range m.tasks {
		if e.t != nil && isTerminalStatus(e.t.GetStatus()) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(m.tasks, id)
		m.removeFromOrderLocked(id)
	}
	m.mu.Unlock()

	if m.st == nil {
		return
	}
	for _, id := range toDelete {
		_ = m.st.Delete(context.Background(), id)
	}
}

func isTerminalStatus(s resume.Status) bool {
	return s == resume.StatusSuccess || s == resume.StatusError || s == resume.StatusCancelled
}

// Statistics aggregates task counts by status.
type Statistics struct {
	Total     int
	Idle      int
	Hashing   int
	Uploading int
	Paused    int
	Success   int
	Error     int
	Cancelled int
}

// GetStatistics aggregates every live task's status.
func (m *Manager) GetStatistics() Statistics {
	var stats Statistics
	for _, t := range m.GetAllTasks() {
		stats.Total++
		switch t.GetStatus() {
		case resume.StatusIdle:
			stats.Idle++
		case resume.StatusHashing:
			stats.Hashing++
		case resume.StatusUploading:
			stats.Uploading++
		case resume.StatusPaused:
			stats.Paused++
		case resume.StatusSuccess:
			stats.Success++
		case resume.StatusError:
			stats.Error++
		case resume.StatusCancelled:
			stats.Cancelled++
		}
	}
	metrics.SetStatusCount(m.cfg.Metrics, "idle", stats.Idle)
	metrics.SetStatusCount(m.cfg.Metrics, "hashing", stats.Hashing)
	metrics.SetStatusCount(m.cfg.Metrics, "uploading", stats.Uploading)
	metrics.SetStatusCount(m.cfg.Metrics, "paused", stats.Paused)
	metrics.SetStatusCount(m.cfg.Metrics, "success", stats.Success)
	metrics.SetStatusCount(m.cfg.Metrics, "error", stats.Error)
	metrics.SetStatusCount(m.cfg.Metrics, "cancelled", stats.Cancelled)
	return stats
}

// Use installs a plugin, calling its Install hook immediately.
func (m *Manager) Use(p plugin.Plugin) {
	m.mu.Lock()
	m.plugins = append(m.plugins, p)
	m.mu.Unlock()
	m.invokePlugins1(p, func(p plugin.Plugin) { p.Install(m) })
}

// Close cancels every live task and closes the Resume Store.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.CancelAll()
	m.taskLimiter.Close()

	if m.st != nil {
		return m.st.Close()
	}
	return nil
}

// wireTask forwards a task's lifecycle events to every installed plugin.
func (m *Manager) wireTask(t *task.Task) {
	t.On(task.EventStart, func(task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskStart(t) })
	})
	t.On(task.EventProgress, func(ev task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskProgress(t, ev.Progress) })
	})
	t.On(task.EventSuccess, func(ev task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskSuccess(t, ev.FileURL, ev.FileID) })
	})
	t.On(task.EventError, func(ev task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskError(t, ev.Err) })
	})
	t.On(task.EventPause, func(task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskPause(t) })
	})
	t.On(task.EventResume, func(task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskResume(t) })
	})
	t.On(task.EventCancel, func(task.Event) {
		m.invokePlugins(func(p plugin.Plugin) { p.OnTaskCancel(t) })
	})
}

// invokePlugins calls fn for every installed plugin, in registration order,
// catching and logging any panic so one misbehaving plugin never affects
// task state or the plugins registered after it.
func (m *Manager) invokePlugins(fn func(plugin.Plugin)) {
	m.mu.Lock()
	plugins := append([]plugin.Plugin(nil), m.plugins...)
	m.mu.Unlock()

	for _, p := range plugins {
		m.invokePlugins1(p, fn)
	}
}

func (m *Manager) invokePlugins1(p plugin.Plugin, fn func(plugin.Plugin)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("manager: plugin hook panicked", "panic", r)
		}
	}()
	fn(p)
}

var _ plugin.Manager = (*Manager)(nil)
