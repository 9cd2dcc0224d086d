// Package resumetest holds a store-implementation-agnostic conformance
// suite for resume.Store, run against both MemoryStore and BadgerStore so
// the two never drift apart in behavior.
package resumetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/chunkflow/pkg/adapter"
	"github.com/marmos91/chunkflow/pkg/resume"
)

// StoreFactory creates a fresh, empty resume.Store for one test. Factories
// backed by the filesystem should use t.TempDir() and register t.Cleanup().
type StoreFactory func(t *testing.T) resume.Store

// RunSuite runs the full conformance suite against the provided factory.
func RunSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("PutThenGetRoundTrips", func(t *testing.T) { testPutThenGet(t, factory) })
	t.Run("GetMissingReturnsErrNotFound", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("PutOverwritesExisting", func(t *testing.T) { testPutOverwrites(t, factory) })
	t.Run("DeleteRemovesRecord", func(t *testing.T) { testDelete(t, factory) })
	t.Run("DeleteMissingIsNotAnError", func(t *testing.T) { testDeleteMissing(t, factory) })
	t.Run("ListReturnsAllRecords", func(t *testing.T) { testList(t, factory) })
	t.Run("CloneIsIndependentOfStoredRecord", func(t *testing.T) { testCloneIndependence(t, factory) })
}

func sampleRecord(taskID string) resume.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return resume.Record{
		TaskID:          taskID,
		FileFingerprint: adapter.Fingerprint{Name: "video.mp4", Size: 1 << 20, LastModified: now.Unix()},
		FileName:        "video.mp4",
		Size:            1 << 20,
		ChunkSize:       256 * 1024,
		CompletedChunkHashes: map[int]string{
			0: "deadbeef",
			1: "feedface",
		},
		Status:    resume.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testPutThenGet(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	rec := sampleRecord("task-1")
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, rec.TaskID, got.TaskID)
	assert.Equal(t, rec.FileName, got.FileName)
	assert.Equal(t, rec.CompletedChunkHashes, got.CompletedChunkHashes)
	assert.Equal(t, rec.Status, got.Status)
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)
	_, err := store.Get(t.Context(), "does-not-exist")
	assert.ErrorIs(t, err, resume.ErrNotFound)
}

func testPutOverwrites(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	rec := sampleRecord("task-2")
	require.NoError(t, store.Put(ctx, rec))

	rec.Status = resume.StatusSuccess
	rec.CompletedChunkHashes[2] = "cafebabe"
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "task-2")
	require.NoError(t, err)
	assert.Equal(t, resume.StatusSuccess, got.Status)
	assert.Len(t, got.CompletedChunkHashes, 3)
}

func testDelete(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	rec := sampleRecord("task-3")
	require.NoError(t, store.Put(ctx, rec))
	require.NoError(t, store.Delete(ctx, "task-3"))

	_, err := store.Get(ctx, "task-3")
	assert.ErrorIs(t, err, resume.ErrNotFound)
}

func testDeleteMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)
	assert.NoError(t, store.Delete(t.Context(), "never-existed"))
}

func testList(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	require.NoError(t, store.Put(ctx, sampleRecord("task-a")))
	require.NoError(t, store.Put(ctx, sampleRecord("task-b")))
	require.NoError(t, store.Put(ctx, sampleRecord("task-c")))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ids := make(map[string]bool)
	for _, rec := range all {
		ids[rec.TaskID] = true
	}
	assert.True(t, ids["task-a"])
	assert.True(t, ids["task-b"])
	assert.True(t, ids["task-c"])
}

func testCloneIndependence(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	rec := sampleRecord("task-clone")
	require.NoError(t, store.Put(ctx, rec))

	// Mutating the caller's map after Put must not affect the stored record.
	rec.CompletedChunkHashes[99] = "mutated-after-put"

	got, err := store.Get(ctx, "task-clone")
	require.NoError(t, err)
	assert.NotContains(t, got.CompletedChunkHashes, 99)
}
