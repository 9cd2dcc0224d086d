// Package uploaderrors classifies upload failures into the kinds §7 of the
// design assigns a retry policy to, and wraps them with enough context
// (task, chunk, attempt) to act on without re-deriving it from the call
// site. Named uploaderrors, not errors, so it never shadows the standard
// library package it builds on.
package uploaderrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the retry policy in §7.
type Kind int

const (
	// KindTransientNetwork covers connection drops, timeouts, 5xx, and
	// abort-on-pause. Retried up to retryCount with exponential backoff.
	KindTransientNetwork Kind = iota
	// KindTokenExpired triggers an automatic createFile refresh; the call
	// that reported expiration is then retried like a transient failure,
	// up to retryCount. Every reported expiration triggers its own
	// refresh, and a failed refresh does not by itself fail the task.
	KindTokenExpired
	// KindHashMismatch means the server rejected uploadChunk because the
	// digest of the bytes it received didn't match ChunkHash. Fatal.
	KindHashMismatch
	// KindPlanInconsistency means size/index disagreement surfaced at
	// merge time. Fatal.
	KindPlanInconsistency
	// KindAdapterContractViolation means the adapter returned a result
	// that violates its own contract (missing field, non-integer index).
	// Fatal.
	KindAdapterContractViolation
	// KindValidation is a synchronous rejection at createTask time (e.g.
	// file too large per host policy). Never reaches a Task.
	KindValidation
	// KindStorage means the resume store failed to persist a record. The
	// task continues in memory; this is a warning, not a task failure.
	KindStorage
	// KindPlugin means a plugin callback panicked.
	// Suppressed and logged; never affects task state.
	KindPlugin
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindTokenExpired:
		return "token_expired"
	case KindHashMismatch:
		return "hash_mismatch"
	case KindPlanInconsistency:
		return "plan_inconsistency"
	case KindAdapterContractViolation:
		return "adapter_contract_violation"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindPlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// Retryable reports whether the chunk dispatch loop should retry a failure
// of this kind on its own, without surfacing a task-level error.
func (k Kind) Retryable() bool {
	return k == KindTransientNetwork || k == KindTokenExpired
}

// Fatal reports whether a failure of this kind transitions the owning task
// to the error state without being retried. A retryable kind ends the task
// in error once its retries are exhausted.
func (k Kind) Fatal() bool {
	switch k {
	case KindHashMismatch, KindPlanInconsistency, KindAdapterContractViolation:
		return true
	default:
		return false
	}
}

// Sentinel errors for the cases that don't need per-occurrence context.
var (
	ErrTokenExpired          = errors.New("upload token expired")
	ErrHashMismatch          = errors.New("chunk hash mismatch reported by server")
	ErrPlanInconsistency     = errors.New("chunk plan disagreement at merge")
	ErrAdapterContract       = errors.New("adapter contract violation")
	ErrQueueFull             = errors.New("concurrency limiter queue full")
	ErrStoreClosed           = errors.New("resume store is closed")
	ErrTaskNotIdle           = errors.New("task is not idle")
	ErrTaskNotPausable       = errors.New("task is not in a pausable state")
	ErrTaskNotResumable      = errors.New("task is not in a resumable state")
	ErrFingerprintMismatch   = errors.New("file fingerprint does not match the persisted record")
)

// TaskError wraps an underlying error with the context needed to log, retry,
// or surface it: which task, which chunk (if any), which kind, and how many
// attempts had been made when it was raised.
type TaskError struct {
	Op         string // e.g. "uploadChunk", "verifyHash", "mergeFile"
	TaskID     string
	ChunkIndex int // -1 if not chunk-scoped
	Kind       Kind
	Attempt    int
	Err        error
}

func (e *TaskError) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("task %s: %s (chunk %d, attempt %d, kind %s): %v",
			e.TaskID, e.Op, e.ChunkIndex, e.Attempt, e.Kind, e.Err)
	}
	return fmt.Sprintf("task %s: %s (attempt %d, kind %s): %v", e.TaskID, e.Op, e.Attempt, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// NewTaskError builds a chunk-scoped TaskError.
func NewTaskError(op, taskID string, chunkIndex int, kind Kind, attempt int, err error) *TaskError {
	return &TaskError{Op: op, TaskID: taskID, ChunkIndex: chunkIndex, Kind: kind, Attempt: attempt, Err: err}
}

// NewTaskLevelError builds a TaskError that isn't scoped to a single chunk
// (e.g. a merge or session failure).
func NewTaskLevelError(op, taskID string, kind Kind, attempt int, err error) *TaskError {
	return &TaskError{Op: op, TaskID: taskID, ChunkIndex: -1, Kind: kind, Attempt: attempt, Err: err}
}
