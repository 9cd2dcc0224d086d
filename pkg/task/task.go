// Package task implements the Upload Task state machine: the per-file
// engine that owns a chunk plan, overlaps whole-file hashing with chunk
// transfer, drives the dynamic chunk-size controller, retries transient
// failures, and reports progress over an event bus.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/chunkflow/internal/logger"
	"github.com/marmos91/chunkflow/pkg/adapter"
	"github.com/marmos91/chunkflow/pkg/chunk"
	"github.com/marmos91/chunkflow/pkg/controller"
	"github.com/marmos91/chunkflow/pkg/eventbus"
	"github.com/marmos91/chunkflow/pkg/limiter"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/uploaderrors"
)

// chunkOutcome is the Limiter's per-chunk job result. Nothing meaningful is
// carried in the success case; failures surface through the returned error.
type chunkOutcome struct{}

// Task drives one file's upload from idle through to success, error, or
// cancelled. Every exported method is safe for concurrent use.
type Task struct {
	id  string
	ad  adapter.Adapter
	st  resume.Store
	file adapter.FileHandle
	fingerprint adapter.Fingerprint
	fileType    string

	cfg        Config
	bus        *eventbus.Bus[Event]
	limiter    *limiter.Limiter[chunkOutcome]
	controller *controller.Controller
	verify     *verifyBatcher
	speed      *speedTracker

	ctx    context.Context
	cancel context.CancelFunc

	mu                      sync.Mutex
	cond                    *sync.Cond
	status                  resume.Status
	paused                  bool
	token                   string
	tokenExpiresAt          *time.Time
	plan                    []chunk.Descriptor
	currentNominalChunkSize uint64
	dispatchCursor          int
	acked                   map[int]string // index -> server-acked hash
	wholeFileHash           string
	precomputedFileHash     string
	fileURL                 string
	fileID                  string
	lastErr                 error
	createdAt               time.Time
	updatedAt               time.Time
	runOnce                 sync.Once
	tokenRefreshedThisRun   bool
	mergeStarted            bool
}

// New constructs an idle Task ready for Start. cfg should already have any
// per-task Options resolved onto the engine defaults (see resolveConfig).
func New(id string, ad adapter.Adapter, st resume.Store, file adapter.FileHandle, cfg Config, opts Options) *Task {
	now := time.Now()
	t := &Task{
		id:                  id,
		ad:                  ad,
		st:                  st,
		file:                file,
		fingerprint:         adapter.FingerprintOf(file),
		fileType:            opts.FileType,
		cfg:                 resolveConfig(cfg, opts),
		bus:                 eventbus.New[Event](),
		speed:               newSpeedTracker(),
		status:              resume.StatusIdle,
		acked:               make(map[int]string),
		precomputedFileHash: opts.PrecomputedFileHash,
		createdAt:           now,
		updatedAt:           now,
	}
	t.cond = sync.NewCond(&t.mu)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t
}

// Restore reconstructs a Task from a persisted Record, for a page reload or
// host-process restart. The caller (the Manager) is responsible for
// matching file to rec.FileFingerprint before calling this; Restore
// re-checks it and returns uploaderrors.ErrFingerprintMismatch on mismatch.
func Restore(id string, ad adapter.Adapter, st resume.Store, file adapter.FileHandle, rec resume.Record, cfg Config) (*Task, error) {
	fp := adapter.FingerprintOf(file)
	if fp != rec.FileFingerprint {
		return nil, uploaderrors.ErrFingerprintMismatch
	}

	t := New(id, ad, st, file, cfg, Options{})
	t.mu.Lock()
	t.status = rec.Status
	t.token = rec.Token
	t.tokenExpiresAt = rec.TokenExpiresAt
	t.wholeFileHash = rec.WholeFileHash
	t.createdAt = rec.CreatedAt
	t.updatedAt = rec.UpdatedAt
	t.acked = make(map[int]string, len(rec.CompletedChunkHashes))
	for idx, hash := range rec.CompletedChunkHashes {
		t.acked[idx] = hash
	}
	if rec.ChunkSize != 0 {
		t.currentNominalChunkSize = rec.ChunkSize
		t.controller = controller.New(cfg.MinChunkSize, cfg.MaxChunkSize, rec.ChunkSize, cfg.TargetLatency)
		t.plan = chunk.Plan(rec.Size, rec.ChunkSize)
	}
	t.mu.Unlock()
	return t, nil
}

// ID returns the task's stable identifier.
func (t *Task) ID() string { return t.id }

// GetStatus returns the task's current state.
func (t *Task) GetStatus() resume.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// GetProgress computes the task's current progress snapshot.
func (t *Task) GetProgress() Progress {
	t.mu.Lock()
	total := t.file.Size()
	var uploaded uint64
	for _, desc := range t.planSnapshotLocked() {
		if _, ok := t.acked[desc.Index]; ok {
			uploaded += desc.Size
		}
	}
	totalChunks := len(t.planSnapshotLocked())
	uploadedChunks := len(t.acked)
	t.mu.Unlock()

	speed := t.speed.BytesPerSecond(time.Now())
	var pct float64
	if total > 0 {
		pct = 100 * float64(uploaded) / float64(total)
	}
	var remaining time.Duration
	if speed > 0 && total > uploaded {
		remaining = time.Duration(float64(total-uploaded)/speed) * time.Second
	}

	return Progress{
		UploadedBytes:  uploaded,
		TotalBytes:     total,
		Percentage:     pct,
		Speed:          speed,
		RemainingTime:  remaining,
		UploadedChunks: uploadedChunks,
		TotalChunks:    totalChunks,
	}
}

// planSnapshotLocked returns the current plan. Caller must hold t.mu.
func (t *Task) planSnapshotLocked() []chunk.Descriptor {
	return t.plan
}

// On registers fn for every emission of event, in registration order.
func (t *Task) On(event EventName, fn func(Event)) eventbus.ListenerID {
	return t.bus.On(string(event), fn)
}

// Off unregisters a listener previously returned by On.
func (t *Task) Off(event EventName, id eventbus.ListenerID) {
	t.bus.Off(string(event), id)
}

// Start is idempotent when idle; it is a no-op from any other state.
func (t *Task) Start() error {
	t.mu.Lock()
	if t.status != resume.StatusIdle {
		t.mu.Unlock()
		return nil
	}
	t.status = resume.StatusUploading
	t.mu.Unlock()

	t.runOnce.Do(func() {
		go t.run()
	})
	t.emit(Event{Name: EventStart, Status: resume.StatusUploading, ChunkIndex: -1})
	return nil
}

// Pause is legal from uploading or hashing. In-flight chunk jobs may
// complete; no new jobs are dispatched until Resume.
func (t *Task) Pause() error {
	t.mu.Lock()
	if t.status != resume.StatusUploading && t.status != resume.StatusHashing {
		t.mu.Unlock()
		return uploaderrors.ErrTaskNotPausable
	}
	t.status = resume.StatusPaused
	t.paused = true
	t.mu.Unlock()
	t.cond.Broadcast()

	t.emit(Event{Name: EventPause, Status: resume.StatusPaused, ChunkIndex: -1})
	t.persistRecord()
	return nil
}

// Resume is legal from paused, or from a restored record whose status was
// uploading. For a restored record it first reverifies already-acked
// chunks against server truth, then resumes dispatch. Resume does not
// check the token's expiry itself: an expired token is refreshed only when
// a later adapter call reports the expiration.
func (t *Task) Resume() error {
	t.mu.Lock()
	legal := t.status == resume.StatusPaused || (t.status == resume.StatusUploading && !t.dispatchStarted())
	if !legal {
		t.mu.Unlock()
		return uploaderrors.ErrTaskNotResumable
	}
	t.status = resume.StatusUploading
	t.paused = false
	restoredStart := !t.dispatchStarted()
	t.mu.Unlock()
	t.cond.Broadcast()

	t.emit(Event{Name: EventResume, Status: resume.StatusUploading, ChunkIndex: -1})
	t.persistRecord()

	t.runOnce.Do(func() {
		go func() {
			if restoredStart {
				t.reverifyAcked()
			}
			t.run()
		}()
	})
	return nil
}

// dispatchStarted reports whether this process has already begun running
// the dispatch loop. Caller must hold t.mu.
func (t *Task) dispatchStarted() bool {
	return t.plan != nil && t.dispatchCursor > 0
}

// Cancel is legal from any non-terminal state. Future chunk jobs are
// abandoned, the resume record is deleted, and status becomes cancelled.
func (t *Task) Cancel() error {
	t.mu.Lock()
	if isTerminal(t.status) {
		t.mu.Unlock()
		return nil
	}
	t.status = resume.StatusCancelled
	t.mu.Unlock()

	t.cancel()
	t.cond.Broadcast()
	t.closeLimiter()

	if t.st != nil {
		_ = t.st.Delete(context.Background(), t.id)
	}

	t.emit(Event{Name: EventCancel, Status: resume.StatusCancelled, ChunkIndex: -1})
	return nil
}

func isTerminal(s resume.Status) bool {
	return s == resume.StatusSuccess || s == resume.StatusError || s == resume.StatusCancelled
}

// closeLimiter stops the task's chunk Limiter, if one was ever created, so
// its dispatchLoop goroutine doesn't outlive the task. Per spec, Workers
// are owned by the Task for their lifetime and terminated on task end.
func (t *Task) closeLimiter() {
	t.mu.Lock()
	l := t.limiter
	t.mu.Unlock()
	if l != nil {
		l.Close()
	}
}

func (t *Task) emit(ev Event) {
	ev.TaskID = t.id
	t.bus.Emit(string(ev.Name), ev)
}

func (t *Task) logCtx() context.Context {
	lc := logger.NewLogContext(t.id).WithFileName(t.file.Name())
	return logger.WithContext(t.ctx, lc)
}

// persistRecord writes the current in-memory state to the resume store.
// Store failures are a warning (KindStorage), never a task failure.
func (t *Task) persistRecord() {
	if t.st == nil {
		return
	}

	t.mu.Lock()
	rec := resume.Record{
		TaskID:               t.id,
		FileFingerprint:      t.fingerprint,
		FileName:             t.file.Name(),
		Size:                 t.file.Size(),
		ChunkSize:            t.currentNominalChunkSize,
		Token:                t.token,
		TokenExpiresAt:       t.tokenExpiresAt,
		CompletedChunkHashes: copyHashes(t.acked),
		WholeFileHash:        t.wholeFileHash,
		Status:               t.status,
		CreatedAt:            t.createdAt,
		UpdatedAt:            time.Now(),
	}
	t.updatedAt = rec.UpdatedAt
	t.mu.Unlock()

	if err := t.st.Put(context.Background(), rec); err != nil {
		logger.WarnCtx(t.logCtx(), "resume store put failed",
			logger.Err(err))
		t.emit(Event{
			Name: EventError,
			Err:  uploaderrors.NewTaskLevelError("resumeStore.put", t.id, uploaderrors.KindStorage, 0, err),
		})
	}
}

func copyHashes(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
