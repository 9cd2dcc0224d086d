// Package resume implements the durable resume store: the persisted Task
// Record that lets an interrupted upload resume after a page reload instead
// of restarting from zero.
package resume

import (
	"time"

	"github.com/marmos91/chunkflow/pkg/adapter"
)

// Status mirrors the upload task's state machine state at the moment the
// record was last written.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusHashing   Status = "hashing"
	StatusUploading Status = "uploading"
	StatusPaused    Status = "paused"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Record is everything needed to resume an upload without re-reading bytes
// already accounted for: which chunks are committed, what the server-issued
// token was, and the file's fingerprint so a re-selected file can be matched
// back to this record without trusting the file path.
type Record struct {
	TaskID          string            `json:"taskId"`
	FileFingerprint adapter.Fingerprint `json:"fileFingerprint"`
	FileName        string            `json:"fileName"`
	Size            uint64            `json:"size"`
	ChunkSize       uint64            `json:"chunkSize"`
	Token           string            `json:"token,omitempty"`
	TokenExpiresAt  *time.Time        `json:"tokenExpiresAt,omitempty"`

	// CompletedChunkHashes maps a chunk index to the hash the server
	// acknowledged for it. A chunk's absence here means it must be
	// (re-)uploaded on resume.
	CompletedChunkHashes map[int]string `json:"completedChunkHashes"`

	WholeFileHash string `json:"wholeFileHash,omitempty"`
	Status        Status `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a deep-enough copy safe to mutate without aliasing the
// receiver's map.
func (r Record) Clone() Record {
	out := r
	out.CompletedChunkHashes = make(map[int]string, len(r.CompletedChunkHashes))
	for k, v := range r.CompletedChunkHashes {
		out.CompletedChunkHashes[k] = v
	}
	if r.TokenExpiresAt != nil {
		t := *r.TokenExpiresAt
		out.TokenExpiresAt = &t
	}
	return out
}

// IsTerminal reports whether Status is one a resumed session should not
// reconstruct a live task for.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}
