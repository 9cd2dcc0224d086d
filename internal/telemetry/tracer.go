package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for upload task spans.
const (
	AttrTaskID      = "task.id"
	AttrFileName    = "task.file_name"
	AttrFileSize    = "task.file_size"
	AttrChunkIndex  = "task.chunk_index"
	AttrChunkSize   = "task.chunk_size"
	AttrChunkHash   = "task.chunk_hash"
	AttrStatus      = "task.status"
	AttrAttempt     = "task.attempt"
	AttrErrorKind   = "task.error_kind"
)

// Span names for task lifecycle operations.
// Format: <component>.<operation>.
const (
	SpanTaskStart      = "task.start"
	SpanTaskDispatch   = "task.dispatchChunk"
	SpanTaskVerify     = "task.verifyHash"
	SpanTaskMerge      = "task.merge"
	SpanTaskPause      = "task.pause"
	SpanTaskResume     = "task.resume"
	SpanTaskCancel     = "task.cancel"
	SpanHashWorker     = "hash.digest"
	SpanResumeStorePut = "resume_store.put"
	SpanResumeStoreGet = "resume_store.get"
)

// TaskID returns an attribute for the upload task identifier.
func TaskID(id string) attribute.KeyValue { return attribute.String(AttrTaskID, id) }

// FileName returns an attribute for the file name being uploaded.
func FileName(name string) attribute.KeyValue { return attribute.String(AttrFileName, name) }

// FileSize returns an attribute for the total file size.
func FileSize(size uint64) attribute.KeyValue { return attribute.Int64(AttrFileSize, int64(size)) }

// ChunkIndex returns an attribute for a chunk descriptor index.
func ChunkIndex(idx int) attribute.KeyValue { return attribute.Int(AttrChunkIndex, idx) }

// ChunkSize returns an attribute for the nominal chunk size.
func ChunkSize(size uint64) attribute.KeyValue { return attribute.Int64(AttrChunkSize, int64(size)) }

// ChunkHash returns an attribute for a chunk's content address.
func ChunkHash(hash string) attribute.KeyValue { return attribute.String(AttrChunkHash, hash) }

// Status returns an attribute for task status.
func Status(status string) attribute.KeyValue { return attribute.String(AttrStatus, status) }

// Attempt returns an attribute for retry attempt number.
func Attempt(n int) attribute.KeyValue { return attribute.Int(AttrAttempt, n) }

// ErrorKind returns an attribute for a classified error kind.
func ErrorKind(kind string) attribute.KeyValue { return attribute.String(AttrErrorKind, kind) }

// StartTaskSpan starts a span for a task lifecycle operation.
func StartTaskSpan(ctx context.Context, spanName, taskID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{TaskID(taskID)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartHashSpan starts a span for a digest computation.
func StartHashSpan(ctx context.Context, taskID string, size uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanHashWorker, trace.WithAttributes(TaskID(taskID), FileSize(size)))
}

// StartResumeStoreSpan starts a span for a resume-store operation.
func StartResumeStoreSpan(ctx context.Context, spanName, taskID string) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(TaskID(taskID)))
}
