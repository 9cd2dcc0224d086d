// Package adapter defines the Request Adapter contract: the four operations
// the upload engine calls to talk to a server, and the types that cross that
// boundary. The core depends only on this interface — it never embeds a
// transport, and an implementer is free to back it with HTTP, WebSocket, or
// an in-memory fake for tests.
package adapter

import "context"

// CreateFileRequest starts a server-side upload session.
type CreateFileRequest struct {
	FileName            string
	FileSize            uint64
	FileType            string
	PreferredChunkSize  uint64 // 0 means "let the server choose"
}

// CreateFileResult carries the session token and the chunk-size ceiling the
// server actually granted. The core MUST honor NegotiatedChunkSize as the
// initial nominal chunk size even if it differs from PreferredChunkSize.
type CreateFileResult struct {
	UploadToken        string
	NegotiatedChunkSize uint64
	ExpiresAt           int64 // unix seconds, 0 if the token never expires
}

// VerifyHashRequest asks the server which chunks (or the whole file) it
// already has by content address. Either FileHash or ChunkHashes is set, not
// both: a whole-file check is an instant-upload probe, a chunk-hash check is
// per-chunk dedup.
type VerifyHashRequest struct {
	UploadToken string
	FileHash    string
	ChunkHashes []ChunkHashEntry
}

// ChunkHashEntry pairs a chunk's index with its content address so the
// server can report back index sets without the caller losing the mapping.
type ChunkHashEntry struct {
	Index int
	Hash  string
}

// VerifyHashResult reports server-side truth. If FileExists, the caller can
// skip straight to success with FileURL. Otherwise ExistingChunks/
// MissingChunks partition the indices that were asked about; an empty
// ChunkHashes request MUST yield an empty result on both sides, never an
// error.
type VerifyHashResult struct {
	FileExists     bool
	FileURL        string
	ExistingChunks []int
	MissingChunks  []int
}

// UploadChunkRequest transfers one chunk's bytes.
type UploadChunkRequest struct {
	UploadToken string
	ChunkIndex  int
	ChunkHash   string
	Bytes       []byte
}

// UploadChunkResult confirms durable, content-addressed storage of the
// chunk. ChunkHash echoes back the digest the server computed so the caller
// can detect a silent corruption even when Success is true.
type UploadChunkResult struct {
	Success   bool
	ChunkHash string
}

// MergeFileRequest finalizes the upload: an ordered list of chunk hashes the
// server validates against the session's declared chunk count.
type MergeFileRequest struct {
	UploadToken string
	FileHash    string
	ChunkHashes []string
}

// MergeFileResult carries the retrieval handle for the finished upload.
type MergeFileResult struct {
	Success bool
	FileURL string
	FileID  string
}

// Adapter is the capability set the core depends on, injected at
// construction. There is no global adapter: every Task and Manager is handed
// one explicitly.
type Adapter interface {
	CreateFile(ctx context.Context, req CreateFileRequest) (CreateFileResult, error)
	VerifyHash(ctx context.Context, req VerifyHashRequest) (VerifyHashResult, error)
	UploadChunk(ctx context.Context, req UploadChunkRequest) (UploadChunkResult, error)
	MergeFile(ctx context.Context, req MergeFileRequest) (MergeFileResult, error)
}
