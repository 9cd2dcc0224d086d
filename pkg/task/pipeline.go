package task

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/chunkflow/internal/logger"
	"github.com/marmos91/chunkflow/internal/telemetry"
	"github.com/marmos91/chunkflow/pkg/adapter"
	"github.com/marmos91/chunkflow/pkg/chunk"
	"github.com/marmos91/chunkflow/pkg/chunkhash"
	"github.com/marmos91/chunkflow/pkg/controller"
	"github.com/marmos91/chunkflow/pkg/limiter"
	"github.com/marmos91/chunkflow/pkg/metrics"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/uploaderrors"
)

// run drives the task from its current state through to a terminal status.
// It is launched at most once per process lifetime (t.runOnce); Resume
// after a restore launches it again via the same guard.
func (t *Task) run() {
	if t.ctx.Err() != nil {
		return
	}

	if !t.hasSession() {
		if err := t.createSession(); err != nil {
			t.failTask("createFile", err)
			return
		}
	}

	if t.tryInstantUpload() {
		return
	}

	t.mu.Lock()
	if t.limiter == nil {
		t.limiter = limiter.New[chunkOutcome](t.cfg.Concurrency)
	}
	if t.verify == nil {
		t.verify = newVerifyBatcher(t.cfg.VerifyBatchWindow, t.flushVerify)
	}
	t.mu.Unlock()

	go t.runDigest()
	t.dispatchLoop()
}

func (t *Task) hasSession() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token != ""
}

// createSession calls createFile once per task lifetime and computes the
// initial chunk plan from the negotiated chunk size.
func (t *Task) createSession() error {
	result, err := t.ad.CreateFile(t.ctx, adapter.CreateFileRequest{
		FileName:           t.file.Name(),
		FileSize:           t.file.Size(),
		FileType:           t.fileType,
		PreferredChunkSize: t.cfg.ChunkSize,
	})
	if err != nil {
		return err
	}

	negotiated := result.NegotiatedChunkSize
	if negotiated == 0 {
		negotiated = t.cfg.ChunkSize
	}
	if negotiated > t.cfg.MaxChunkSize {
		negotiated = t.cfg.MaxChunkSize
	}
	// A negotiated size below MinChunkSize becomes this task's floor, so
	// the first dispatch does not replan away from the negotiated size.
	minSize := t.cfg.MinChunkSize
	if negotiated < minSize {
		minSize = negotiated
	}

	t.mu.Lock()
	t.token = result.UploadToken
	if result.ExpiresAt != 0 {
		ts := time.Unix(result.ExpiresAt, 0)
		t.tokenExpiresAt = &ts
	}
	t.currentNominalChunkSize = negotiated
	t.controller = controller.New(minSize, t.cfg.MaxChunkSize, negotiated, t.cfg.TargetLatency)
	t.plan = chunk.Plan(t.file.Size(), negotiated)
	t.mu.Unlock()

	t.persistRecord()
	return nil
}

// tryInstantUpload performs the 秒传 optimization: if a whole-file hash is
// already known, ask the server before transferring any bytes. Skipping
// this never affects correctness — it is a pure optimization.
func (t *Task) tryInstantUpload() bool {
	t.mu.Lock()
	hash := t.precomputedFileHash
	token := t.token
	t.mu.Unlock()
	if hash == "" {
		return false
	}

	result, err := t.ad.VerifyHash(t.ctx, adapter.VerifyHashRequest{UploadToken: token, FileHash: hash})
	if err != nil || !result.FileExists {
		return false
	}

	t.mu.Lock()
	t.wholeFileHash = hash
	t.fileURL = result.FileURL
	t.status = resume.StatusSuccess
	total := t.file.Size()
	t.mu.Unlock()

	t.speed.Record(time.Now(), total)
	t.emit(Event{Name: EventSuccess, Status: resume.StatusSuccess, ChunkIndex: -1, FileURL: result.FileURL})
	if t.st != nil {
		_ = t.st.Delete(context.Background(), t.id)
	}
	return true
}

// runDigest computes the whole-file hash concurrently with chunk transfer.
// Its result only gates the final mergeFile call, never chunk dispatch.
func (t *Task) runDigest() {
	reader, err := t.file.Slice(0, t.file.Size())
	if err != nil {
		return
	}

	start := time.Now()
	hash, err := chunkhash.DigestInChunks(t.ctx, reader, t.file.Size(), t.emitHashProgress)
	if err != nil {
		return // cancellation or I/O failure; dispatch loop's own failures surface separately
	}
	metrics.ObserveDigest(t.cfg.Metrics, int64(t.file.Size()), time.Since(start))

	t.mu.Lock()
	t.wholeFileHash = hash
	t.mu.Unlock()

	t.emit(Event{Name: EventHashComplete, ChunkIndex: -1})
	t.maybeComplete()
}

func (t *Task) emitHashProgress(percent int) {
	t.emit(Event{Name: EventHashProgress, ChunkIndex: -1, HashPercent: percent})
}

// dispatchLoop walks the plan in index order, submitting one Limiter job per
// not-yet-acked descriptor. It replans the uncommitted suffix whenever the
// controller's current size has drifted from the size the plan was built
// with, and blocks while the task is paused.
func (t *Task) dispatchLoop() {
	for {
		t.mu.Lock()
		for t.paused && t.status != resume.StatusCancelled {
			t.cond.Wait()
		}
		if t.status == resume.StatusCancelled || t.status == resume.StatusError {
			t.mu.Unlock()
			return
		}
		if t.dispatchCursor >= len(t.plan) {
			t.mu.Unlock()
			break
		}

		t.replanIfNeededLocked()

		idx := t.dispatchCursor
		desc := t.plan[idx]
		t.dispatchCursor++
		_, acked := t.acked[idx]
		t.mu.Unlock()

		if acked {
			continue
		}

		t.limiter.Submit(t.ctx, t.chunkJob(desc))
		metrics.SetActiveChunks(t.cfg.Metrics, t.limiter.Active())
	}

	t.limiter.Drain()
	t.maybeComplete()
}

// replanIfNeededLocked recomputes the uncommitted suffix when the
// controller's size has moved. Caller must hold t.mu.
func (t *Task) replanIfNeededLocked() {
	desired := t.controller.Current()
	if desired == t.currentNominalChunkSize {
		return
	}
	newPlan, err := chunk.Replan(t.plan[:t.dispatchCursor], t.file.Size(), desired)
	if err != nil {
		return // keep the old plan; a malformed replan must never corrupt dispatch
	}
	t.plan = newPlan
	t.currentNominalChunkSize = desired
	metrics.SetChunkSize(t.cfg.Metrics, desired)
}

// chunkJob builds the Limiter job for one descriptor: slice, hash, coalesced
// verify, upload-with-retry, ack.
func (t *Task) chunkJob(desc chunk.Descriptor) limiter.Job[chunkOutcome] {
	return func(ctx context.Context) (chunkOutcome, error) {
		ctx, span := telemetry.StartTaskSpan(ctx, telemetry.SpanTaskDispatch, t.id, telemetry.ChunkIndex(desc.Index))
		defer span.End()

		// A job queued before a Pause waits here until Resume, so no new
		// chunk starts while the task is paused.
		t.mu.Lock()
		for t.paused && !isTerminal(t.status) {
			t.cond.Wait()
		}
		_, already := t.acked[desc.Index]
		t.mu.Unlock()
		if already {
			return chunkOutcome{}, nil
		}

		reader, err := t.file.Slice(desc.Start, desc.End)
		if err != nil {
			err = uploaderrors.NewTaskError("slice", t.id, desc.Index, uploaderrors.KindAdapterContractViolation, 0, err)
			span.SetStatus(codes.Error, err.Error())
			t.handleChunkFailure(desc.Index, err)
			return chunkOutcome{}, err
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			err = uploaderrors.NewTaskError("slice", t.id, desc.Index, uploaderrors.KindTransientNetwork, 0, err)
			span.SetStatus(codes.Error, err.Error())
			t.handleChunkFailure(desc.Index, err)
			return chunkOutcome{}, err
		}

		hash := chunkhash.Digest(data)

		exists, err := t.verify.request(ctx, adapter.ChunkHashEntry{Index: desc.Index, Hash: hash})
		if err == nil && exists {
			t.recordAck(desc.Index, hash, desc.Size)
			return chunkOutcome{}, nil
		}

		outcome, err := t.uploadWithRetry(ctx, desc, hash, data)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return outcome, err
	}
}

func (t *Task) uploadWithRetry(ctx context.Context, desc chunk.Descriptor, hash string, data []byte) (chunkOutcome, error) {
	var lastErr error

	for attempt := 0; attempt <= t.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := t.cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return chunkOutcome{}, ctx.Err()
			}
		}

		t.mu.Lock()
		token := t.token
		t.mu.Unlock()

		start := time.Now()
		result, err := t.ad.UploadChunk(ctx, adapter.UploadChunkRequest{
			UploadToken: token,
			ChunkIndex:  desc.Index,
			ChunkHash:   hash,
			Bytes:       data,
		})
		elapsed := time.Since(start)

		if err == nil && result.Success {
			metrics.ObserveChunkUpload(t.cfg.Metrics, len(data), elapsed, true)
			t.controller.Observe(elapsed)
			t.recordAck(desc.Index, result.ChunkHash, desc.Size)
			return chunkOutcome{}, nil
		}
		metrics.ObserveChunkUpload(t.cfg.Metrics, len(data), elapsed, false)

		if err == nil {
			err = uploaderrors.ErrAdapterContract
		}
		kind := classify(err)
		taskErr := uploaderrors.NewTaskError("uploadChunk", t.id, desc.Index, kind, attempt+1, err)
		lastErr = taskErr
		metrics.RecordRetry(t.cfg.Metrics, kind.String())

		if kind == uploaderrors.KindTokenExpired {
			_ = t.refreshSession()
		}
		if !kind.Retryable() {
			break
		}

		t.emit(Event{Name: EventChunkError, ChunkIndex: desc.Index, ChunkHash: hash, Err: taskErr})
		logger.WarnCtx(t.logCtx(), "chunk upload failed, retrying",
			logger.ChunkIndex(desc.Index), logger.Attempt(attempt+1), logger.Err(err))
	}

	t.handleChunkFailure(desc.Index, lastErr)
	return chunkOutcome{}, lastErr
}

// refreshSession performs an automatic token refresh on expiration: a
// fresh createFile with the same effective chunk size, replanning the
// uncommitted suffix if the server grants a different size. uploadWithRetry
// calls it for every token-expired failure and ignores its error.
func (t *Task) refreshSession() error {
	t.mu.Lock()
	size := t.currentNominalChunkSize
	t.mu.Unlock()

	result, err := t.ad.CreateFile(t.ctx, adapter.CreateFileRequest{
		FileName:           t.file.Name(),
		FileSize:           t.file.Size(),
		FileType:           t.fileType,
		PreferredChunkSize: size,
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.token = result.UploadToken
	if result.ExpiresAt != 0 {
		ts := time.Unix(result.ExpiresAt, 0)
		t.tokenExpiresAt = &ts
	} else {
		t.tokenExpiresAt = nil
	}
	negotiated := result.NegotiatedChunkSize
	if negotiated != 0 && negotiated != t.currentNominalChunkSize {
		if newPlan, err := chunk.Replan(t.plan[:t.dispatchCursor], t.file.Size(), negotiated); err == nil {
			t.plan = newPlan
			t.currentNominalChunkSize = negotiated
		}
	}
	t.mu.Unlock()

	t.persistRecord()
	return nil
}

// reverifyAcked reconciles this task's completedChunkHashes against server
// truth before redispatching a restored session, per the resume contract.
func (t *Task) reverifyAcked() {
	t.mu.Lock()
	token := t.token
	entries := make([]adapter.ChunkHashEntry, 0, len(t.acked))
	for idx, hash := range t.acked {
		entries = append(entries, adapter.ChunkHashEntry{Index: idx, Hash: hash})
	}
	t.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	result, err := t.ad.VerifyHash(t.ctx, adapter.VerifyHashRequest{UploadToken: token, ChunkHashes: entries})
	if err != nil {
		return
	}

	missing := make(map[int]bool, len(result.MissingChunks))
	for _, idx := range result.MissingChunks {
		missing[idx] = true
	}

	t.mu.Lock()
	for idx := range missing {
		delete(t.acked, idx)
	}
	t.mu.Unlock()
}

// flushVerify is the verifyBatcher's flush callback: one verifyHash call for
// a coalesced set of chunk hashes.
func (t *Task) flushVerify(entries []adapter.ChunkHashEntry) (map[int]bool, error) {
	t.mu.Lock()
	token := t.token
	t.mu.Unlock()

	start := time.Now()
	result, err := t.ad.VerifyHash(t.ctx, adapter.VerifyHashRequest{UploadToken: token, ChunkHashes: entries})
	if err != nil {
		return nil, err
	}

	existing := make(map[int]bool, len(result.ExistingChunks))
	for _, idx := range result.ExistingChunks {
		existing[idx] = true
	}
	metrics.ObserveVerifyBatch(t.cfg.Metrics, len(entries), len(existing), time.Since(start))
	return existing, nil
}

// recordAck commits an acked chunk idempotently and advances progress.
func (t *Task) recordAck(index int, hash string, size uint64) {
	t.mu.Lock()
	if _, already := t.acked[index]; already {
		t.mu.Unlock()
		return
	}
	t.acked[index] = hash
	t.mu.Unlock()

	t.speed.Record(time.Now(), size)
	t.persistRecord()
	t.emit(Event{Name: EventChunkSuccess, ChunkIndex: index, ChunkHash: hash})
	t.emit(Event{Name: EventProgress, ChunkIndex: -1, Progress: t.GetProgress()})

	t.maybeComplete()
}

// handleChunkFailure classifies a final (non-retryable or exhausted) chunk
// failure and transitions the task to error if the kind is fatal or
// retryable (a retryable kind reaching here has used up its retries).
func (t *Task) handleChunkFailure(index int, err error) {
	kind := classify(err)
	if e, ok := err.(*uploaderrors.TaskError); ok {
		kind = e.Kind
	}

	t.emit(Event{Name: EventChunkError, ChunkIndex: index, Err: err})

	if kind.Fatal() || kind.Retryable() {
		metrics.RecordRetry(t.cfg.Metrics, "exhausted:"+kind.String())
		t.failTask("uploadChunk", err)
	}
}

// failTask transitions the task to error. The resume record is preserved so
// a host can retry manually by re-creating the task against the same file.
func (t *Task) failTask(op string, err error) {
	t.mu.Lock()
	if isTerminal(t.status) {
		t.mu.Unlock()
		return
	}
	t.status = resume.StatusError
	t.lastErr = err
	t.mu.Unlock()

	t.cond.Broadcast()
	t.closeLimiter()
	t.persistRecord()
	t.emit(Event{Name: EventError, ChunkIndex: -1, Err: err})
}

// maybeComplete calls mergeFile once every chunk is acked and the whole-file
// digest is known. Safe to call from multiple goroutines: t.mergeStarted is
// set under t.mu before the lock is released, so only the first caller to
// observe both conditions true ever proceeds to call MergeFile.
func (t *Task) maybeComplete() {
	t.mu.Lock()
	if isTerminal(t.status) || t.mergeStarted {
		t.mu.Unlock()
		return
	}
	total := len(t.plan)
	if total == 0 || len(t.acked) < total || t.wholeFileHash == "" {
		t.mu.Unlock()
		return
	}

	hashes := make([]string, total)
	for _, desc := range t.plan {
		hash, ok := t.acked[desc.Index]
		if !ok {
			t.mu.Unlock()
			return
		}
		hashes[desc.Index] = hash
	}
	token := t.token
	wholeHash := t.wholeFileHash
	t.mergeStarted = true
	t.status = resume.StatusUploading // stays uploading through merge; terminal set below
	t.mu.Unlock()

	start := time.Now()
	result, err := t.ad.MergeFile(t.ctx, adapter.MergeFileRequest{UploadToken: token, FileHash: wholeHash, ChunkHashes: hashes})
	metrics.ObserveMerge(t.cfg.Metrics, time.Since(start), err == nil)
	if err != nil {
		t.failTask("mergeFile", uploaderrors.NewTaskLevelError("mergeFile", t.id, uploaderrors.KindPlanInconsistency, 0, err))
		return
	}

	t.mu.Lock()
	t.status = resume.StatusSuccess
	t.fileURL = result.FileURL
	t.fileID = result.FileID
	t.mu.Unlock()

	t.closeLimiter()

	if t.st != nil {
		_ = t.st.Delete(context.Background(), t.id)
	}

	t.emit(Event{Name: EventSuccess, Status: resume.StatusSuccess, ChunkIndex: -1, FileURL: result.FileURL, FileID: result.FileID})
}
