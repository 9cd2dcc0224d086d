package task_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/chunkflow/pkg/chunkhash"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/task"
	"github.com/marmos91/chunkflow/pkg/testutil"
	"github.com/marmos91/chunkflow/pkg/uploaderrors"
)

func byteReader(data []byte) *bytes.Reader { return bytes.NewReader(data) }

func contextBackground() context.Context { return context.Background() }

// collector records every event a task emits, in arrival order, safely
// across the goroutines that drive a task's dispatch loop.
type collector struct {
	mu     sync.Mutex
	events []task.Event
}

func (c *collector) record(ev task.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) of(name task.EventName) []task.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []task.Event
	for _, ev := range c.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func subscribeAll(tk *task.Task) *collector {
	c := &collector{}
	for _, name := range []task.EventName{
		task.EventStart, task.EventProgress, task.EventChunkSuccess, task.EventChunkError,
		task.EventHashProgress, task.EventHashComplete, task.EventPause, task.EventResume,
		task.EventCancel, task.EventSuccess, task.EventError,
	} {
		tk.On(name, c.record)
	}
	return c
}

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

func fastConfig() task.Config {
	cfg := task.DefaultConfig()
	cfg.RetryDelay = 5 * time.Millisecond
	cfg.VerifyBatchWindow = 5 * time.Millisecond
	return cfg
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	return data
}

// TestSmallFileDirectPath covers §8 scenario 1: a file smaller than one
// chunk uploads as a single chunk and reaches success.
func TestSmallFileDirectPath(t *testing.T) {
	ad := testutil.NewAdapter()
	file := testutil.NewFileHandle("small.txt", randomBytes(1024), "text/plain", 0)
	cfg := fastConfig()

	tk := task.New("t1", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if got := len(c.of(task.EventSuccess)); got != 1 {
		t.Fatalf("expected exactly one success event, got %d", got)
	}
	progress := tk.GetProgress()
	if progress.UploadedBytes != file.Size() {
		t.Fatalf("uploaded bytes = %d, want %d", progress.UploadedBytes, file.Size())
	}
}

// TestExactMultipleConcurrency covers §8 scenario 2: a file that is an exact
// multiple of the chunk size uploads every chunk under bounded concurrency.
func TestExactMultipleConcurrency(t *testing.T) {
	ad := testutil.NewAdapter()
	chunkSize := uint64(64 * 1024)
	file := testutil.NewFileHandle("multi.bin", randomBytes(int(chunkSize*6)), "application/octet-stream", 0)

	cfg := fastConfig()
	cfg.ChunkSize = chunkSize
	cfg.Concurrency = 2

	tk := task.New("t2", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if got := len(c.of(task.EventChunkSuccess)); got != 6 {
		t.Fatalf("expected 6 chunk successes, got %d", got)
	}
}

// TestInstantUpload covers §8 scenario 3: a precomputed whole-file hash that
// the fake server already has on file completes with zero chunk uploads.
func TestInstantUpload(t *testing.T) {
	ad := testutil.NewAdapter()
	data := randomBytes(4096)
	wholeHash, err := chunkhash.DigestInChunks(contextBackground(), byteReader(data), uint64(len(data)), nil)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	ad.SeedDedupFile(wholeHash, "https://example.invalid/files/seeded")

	file := testutil.NewFileHandle("dup.bin", data, "application/octet-stream", 0)
	cfg := fastConfig()

	tk := task.New("t3", ad, nil, file, cfg, task.Options{PrecomputedFileHash: wholeHash})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if got := len(c.of(task.EventChunkSuccess)); got != 0 {
		t.Fatalf("expected zero chunk uploads on instant upload, got %d", got)
	}
	successes := c.of(task.EventSuccess)
	if len(successes) != 1 || successes[0].FileURL != "https://example.invalid/files/seeded" {
		t.Fatalf("unexpected success event: %+v", successes)
	}
}

// TestPartialResume covers §8 scenario 4: a chunk already known to the
// fake server (seeded dedup) is skipped by the verify-batch path.
func TestPartialResume(t *testing.T) {
	ad := testutil.NewAdapter()
	chunkSize := uint64(1024)
	data := randomBytes(int(chunkSize * 3))

	firstChunkHash := chunkhash.Digest(data[:chunkSize])
	ad.SeedDedupChunk(firstChunkHash)

	file := testutil.NewFileHandle("partial.bin", data, "application/octet-stream", 0)
	cfg := fastConfig()
	cfg.ChunkSize = chunkSize

	tk := task.New("t4", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if got := len(c.of(task.EventChunkSuccess)); got != 3 {
		t.Fatalf("expected all 3 chunks acked (dedup or uploaded), got %d", got)
	}
}

// TestTransientRetry covers §8 scenario 5: a transient failure on the first
// upload attempt of chunk 0 is retried and the task still reaches success.
func TestTransientRetry(t *testing.T) {
	ad := testutil.NewAdapter()
	file := testutil.NewFileHandle("retry.bin", randomBytes(2048), "application/octet-stream", 0)
	cfg := fastConfig()
	cfg.ChunkSize = 2048 // single chunk, so the fault lands on index 0

	// token is unknown until createFile runs; "*" matches whichever token
	// this task's session negotiates.
	ad.InjectFault("uploadChunk", "*", 0, errors.New("simulated transient network failure"))

	tk := task.New("t5", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	if got := len(c.of(task.EventChunkError)); got == 0 {
		t.Fatalf("expected at least one chunkError event from the injected failure")
	}
	if got := len(c.of(task.EventSuccess)); got != 1 {
		t.Fatalf("expected task to reach success after retrying the transient failure, got %d success events", got)
	}
}

// TestPauseResumeCancel covers §8 scenario 6: pausing halts new dispatch,
// resuming continues it, and cancel tears the task down without success.
func TestPauseResumeCancel(t *testing.T) {
	ad := testutil.NewAdapter()
	chunkSize := uint64(512)
	file := testutil.NewFileHandle("pausable.bin", randomBytes(int(chunkSize*20)), "application/octet-stream", 0)

	cfg := fastConfig()
	cfg.ChunkSize = chunkSize
	cfg.Concurrency = 1

	tk := task.New("t6", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(c.of(task.EventChunkSuccess)) >= 1 })

	if err := tk.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := tk.GetStatus(); got != resume.StatusPaused {
		t.Fatalf("status after pause = %s, want paused", got)
	}

	ackedAtPause := len(c.of(task.EventChunkSuccess))
	time.Sleep(50 * time.Millisecond)
	if got := len(c.of(task.EventChunkSuccess)); got > ackedAtPause+1 {
		t.Fatalf("chunk acks advanced materially while paused: %d -> %d", ackedAtPause, got)
	}

	if err := tk.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })
}

func TestCancelIsTerminal(t *testing.T) {
	ad := testutil.NewAdapter()
	chunkSize := uint64(256)
	file := testutil.NewFileHandle("cancel.bin", randomBytes(int(chunkSize*50)), "application/octet-stream", 0)

	cfg := fastConfig()
	cfg.ChunkSize = chunkSize
	cfg.Concurrency = 1

	tk := task.New("t7", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(c.of(task.EventChunkSuccess)) >= 1 })

	if err := tk.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := tk.GetStatus(); got != resume.StatusCancelled {
		t.Fatalf("status after cancel = %s, want cancelled", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := len(c.of(task.EventSuccess)); got != 0 {
		t.Fatalf("expected no success event after cancel, got %d", got)
	}
}

// TestAckIdempotence exercises recordAck's idempotence guarantee indirectly:
// a chunk the fake server already considers existing (seeded dedup) must
// still only ever produce one chunkSuccess event for that index.
func TestAckIdempotence(t *testing.T) {
	ad := testutil.NewAdapter()
	chunkSize := uint64(512)
	data := randomBytes(int(chunkSize * 2))
	file := testutil.NewFileHandle("idempotent.bin", data, "application/octet-stream", 0)

	cfg := fastConfig()
	cfg.ChunkSize = chunkSize

	tk := task.New("t8", ad, nil, file, cfg, task.Options{})
	c := subscribeAll(tk)

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	seen := map[int]int{}
	for _, ev := range c.of(task.EventChunkSuccess) {
		seen[ev.ChunkIndex]++
	}
	for idx, count := range seen {
		if count != 1 {
			t.Fatalf("chunk %d acked %d times, want 1", idx, count)
		}
	}
}

// TestProgressMonotonic checks that UploadedBytes never decreases across a
// run, a property the plan/replan machinery must preserve.
func TestProgressMonotonic(t *testing.T) {
	ad := testutil.NewAdapter()
	chunkSize := uint64(1024)
	file := testutil.NewFileHandle("monotonic.bin", randomBytes(int(chunkSize*8)), "application/octet-stream", 0)

	cfg := fastConfig()
	cfg.ChunkSize = chunkSize

	tk := task.New("t9", ad, nil, file, cfg, task.Options{})

	var mu sync.Mutex
	var maxSeen uint64
	var violated bool
	tk.On(task.EventProgress, func(ev task.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Progress.UploadedBytes < maxSeen {
			violated = true
		}
		maxSeen = ev.Progress.UploadedBytes
	})

	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return tk.GetStatus() == resume.StatusSuccess })

	mu.Lock()
	defer mu.Unlock()
	if violated {
		t.Fatalf("progress regressed during upload")
	}
}

// TestDigestIsDeterministic confirms the content address used to drive
// instant-upload decisions is stable for identical content.
func TestDigestIsDeterministic(t *testing.T) {
	data := randomBytes(8192)
	h1, err := chunkhash.DigestInChunks(contextBackground(), byteReader(data), uint64(len(data)), nil)
	if err != nil {
		t.Fatalf("digest 1: %v", err)
	}
	h2, err := chunkhash.DigestInChunks(contextBackground(), byteReader(data), uint64(len(data)), nil)
	if err != nil {
		t.Fatalf("digest 2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("digest not deterministic: %s != %s", h1, h2)
	}
}

func TestFingerprintMismatchOnRestore(t *testing.T) {
	ad := testutil.NewAdapter()
	file := testutil.NewFileHandle("orig.bin", randomBytes(100), "application/octet-stream", 0)
	other := testutil.NewFileHandle("orig.bin", randomBytes(200), "application/octet-stream", 0)

	rec := resume.Record{
		TaskID:               "t10",
		FileName:             "orig.bin",
		Size:                 file.Size(),
		Status:               resume.StatusUploading,
		CompletedChunkHashes: map[int]string{},
	}
	rec.FileFingerprint.Name = file.Name()
	rec.FileFingerprint.Size = file.Size()

	if _, err := task.Restore("t10", ad, nil, other, rec, task.DefaultConfig()); !errors.Is(err, uploaderrors.ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}
}
