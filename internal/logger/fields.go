package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Task identity
	// ========================================================================
	KeyTaskID      = "task_id"      // Upload task identifier
	KeyFileName    = "file_name"    // File name being uploaded
	KeyFingerprint = "fingerprint"  // (name,size,lastModified) fingerprint
	KeyStatus      = "status"       // Task status: idle, hashing, uploading, ...
	KeyChunkIndex  = "chunk_index"  // 0-based chunk descriptor index
	KeyChunkHash   = "chunk_hash"   // Content-address digest of a chunk
	KeyWholeHash   = "whole_hash"   // Content-address digest of the whole file

	// ========================================================================
	// Size & progress
	// ========================================================================
	KeySize          = "size"           // Byte size
	KeyChunkSize     = "chunk_size"     // Nominal chunk size in bytes
	KeyBytes         = "bytes"          // Byte count for an individual call
	KeyUploadedBytes = "uploaded_bytes" // Progress: bytes acked so far
	KeyTotalBytes    = "total_bytes"    // Progress: total file size
	KeyPercentage    = "percentage"     // Progress: uploadedBytes/totalBytes*100
	KeySpeed         = "speed"          // Progress: EMA throughput, bytes/sec

	// ========================================================================
	// Retry & errors
	// ========================================================================
	KeyAttempt    = "attempt"    // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyErrorKind  = "error_kind" // Classified error kind (§7 table)
	KeyError      = "error"      // Error message

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyOperation  = "operation"   // Sub-operation type

	// ========================================================================
	// Concurrency
	// ========================================================================
	KeyLimiterCapacity = "limiter_capacity" // Concurrency limiter's N
	KeyLimiterActive   = "limiter_active"   // Jobs currently running
	KeyLimiterQueued   = "limiter_queued"   // Jobs waiting in FIFO queue
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// TaskID returns a slog.Attr for the upload task identifier.
func TaskID(id string) slog.Attr { return slog.String(KeyTaskID, id) }

// FileName returns a slog.Attr for the file name being uploaded.
func FileName(name string) slog.Attr { return slog.String(KeyFileName, name) }

// Status returns a slog.Attr for task status.
func Status(s string) slog.Attr { return slog.String(KeyStatus, s) }

// ChunkIndex returns a slog.Attr for a chunk descriptor index.
func ChunkIndex(idx int) slog.Attr { return slog.Int(KeyChunkIndex, idx) }

// ChunkHash returns a slog.Attr for a chunk's content address.
func ChunkHash(hash string) slog.Attr { return slog.String(KeyChunkHash, hash) }

// WholeHash returns a slog.Attr for the whole-file content address.
func WholeHash(hash string) slog.Attr { return slog.String(KeyWholeHash, hash) }

// Size returns a slog.Attr for a byte size.
func Size(s uint64) slog.Attr { return slog.Uint64(KeySize, s) }

// ChunkSize returns a slog.Attr for the nominal chunk size.
func ChunkSize(s uint64) slog.Attr { return slog.Uint64(KeyChunkSize, s) }

// Bytes returns a slog.Attr for a byte count on an individual call.
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// UploadedBytes returns a slog.Attr for progress bytes acked so far.
func UploadedBytes(n uint64) slog.Attr { return slog.Uint64(KeyUploadedBytes, n) }

// TotalBytes returns a slog.Attr for total file size.
func TotalBytes(n uint64) slog.Attr { return slog.Uint64(KeyTotalBytes, n) }

// Percentage returns a slog.Attr for progress percentage.
func Percentage(p float64) slog.Attr { return slog.Float64(KeyPercentage, p) }

// Speed returns a slog.Attr for EMA throughput in bytes/sec.
func Speed(bytesPerSec float64) slog.Attr { return slog.Float64(KeySpeed, bytesPerSec) }

// Attempt returns a slog.Attr for retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for maximum retry attempts.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }

// ErrorKind returns a slog.Attr for a classified error kind.
func ErrorKind(kind string) slog.Attr { return slog.String(KeyErrorKind, kind) }

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Operation returns a slog.Attr for a sub-operation type.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// LimiterCapacity returns a slog.Attr for a concurrency limiter's capacity.
func LimiterCapacity(n int) slog.Attr { return slog.Int(KeyLimiterCapacity, n) }

// LimiterActive returns a slog.Attr for the number of currently active jobs.
func LimiterActive(n int) slog.Attr { return slog.Int(KeyLimiterActive, n) }

// LimiterQueued returns a slog.Attr for the number of FIFO-queued jobs.
func LimiterQueued(n int) slog.Attr { return slog.Int(KeyLimiterQueued, n) }
