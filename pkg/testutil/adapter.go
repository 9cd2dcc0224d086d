// Package testutil provides an in-memory Request Adapter, file handle, and
// clock for exercising pkg/task and pkg/manager without a real transport.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/marmos91/chunkflow/pkg/adapter"
	"github.com/marmos91/chunkflow/pkg/chunkhash"
	"github.com/marmos91/chunkflow/pkg/uploaderrors"
)

// chunkRecord is what the fake server has durably stored for one chunk.
type chunkRecord struct {
	hash  string
	bytes []byte
}

// session is the fake server's view of one upload.
type session struct {
	mu             sync.Mutex
	token          string
	fileName       string
	fileSize       uint64
	chunkSize      uint64
	chunks         map[int]chunkRecord
	merged         bool
	wholeFileHash  string
	fileURL        string
	fileID         string
	tokenExpired   bool
}

// Adapter is an in-memory adapter.Adapter. It durably "stores" chunk bytes
// in memory and supports injecting failures for retry/resume tests.
type Adapter struct {
	mu       sync.Mutex
	sessions map[string]*session
	nextID   atomic.Uint64

	// ByContentDedup lets verifyHash report an existing file/chunk purely by
	// hash, independent of which session produced it — the fake server's
	// stand-in for cross-user deduplication.
	dedupFiles  map[string]string // wholeFileHash -> fileURL
	dedupChunks map[string]bool   // chunkHash -> known to exist

	// Injected faults, keyed by "op:taskToken:chunkIndex" (chunkIndex -1 for
	// task-level calls). Each fault fires once then removes itself.
	mu2    sync.Mutex
	faults map[string]error
}

// NewAdapter constructs an empty fake Adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		sessions:    make(map[string]*session),
		dedupFiles:  make(map[string]string),
		dedupChunks: make(map[string]bool),
		faults:      make(map[string]error),
	}
}

// InjectFault arranges for the next matching call to fail with err, once.
// token may be "*" to match any session's token — useful when the caller
// doesn't yet know the token a createFile call will negotiate.
func (a *Adapter) InjectFault(op, token string, chunkIndex int, err error) {
	a.mu2.Lock()
	defer a.mu2.Unlock()
	a.faults[faultKey(op, token, chunkIndex)] = err
}

func faultKey(op, token string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", op, token, chunkIndex)
}

func (a *Adapter) takeFault(op, token string, chunkIndex int) error {
	a.mu2.Lock()
	defer a.mu2.Unlock()
	if err, ok := a.faults[faultKey(op, token, chunkIndex)]; ok {
		delete(a.faults, faultKey(op, token, chunkIndex))
		return err
	}
	wildcard := faultKey(op, "*", chunkIndex)
	if err, ok := a.faults[wildcard]; ok {
		delete(a.faults, wildcard)
		return err
	}
	return nil
}

// SeedDedupFile marks wholeFileHash as already present server-side, for
// instant-upload tests.
func (a *Adapter) SeedDedupFile(wholeFileHash, fileURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dedupFiles[wholeFileHash] = fileURL
}

// SeedDedupChunk marks chunkHash as already present server-side, for
// partial-resume tests.
func (a *Adapter) SeedDedupChunk(chunkHash string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dedupChunks[chunkHash] = true
}

func (a *Adapter) CreateFile(ctx context.Context, req adapter.CreateFileRequest) (adapter.CreateFileResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.CreateFileResult{}, err
	}
	if err := a.takeFault("createFile", "", -1); err != nil {
		return adapter.CreateFileResult{}, err
	}

	token := fmt.Sprintf("tok-%d", a.nextID.Add(1))
	chunkSize := req.PreferredChunkSize
	if chunkSize == 0 {
		chunkSize = 1 << 20
	}

	s := &session{
		token:     token,
		fileName:  req.FileName,
		fileSize:  req.FileSize,
		chunkSize: chunkSize,
		chunks:    make(map[int]chunkRecord),
	}

	a.mu.Lock()
	a.sessions[token] = s
	a.mu.Unlock()

	return adapter.CreateFileResult{UploadToken: token, NegotiatedChunkSize: chunkSize}, nil
}

func (a *Adapter) session(token string) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[token]
	if !ok {
		return nil, fmt.Errorf("testutil: unknown upload token %q", token)
	}
	s.mu.Lock()
	expired := s.tokenExpired
	s.mu.Unlock()
	if expired {
		return nil, fmt.Errorf("testutil: %w", uploaderrors.ErrTokenExpired)
	}
	return s, nil
}

// ExpireToken marks token's session expired: the next verifyHash,
// uploadChunk, or mergeFile call against it fails with ErrTokenExpired,
// until a fresh createFile call replaces the session's token. Lets tests
// drive the token-refresh retry path deterministically.
func (a *Adapter) ExpireToken(token string) {
	a.mu.Lock()
	s, ok := a.sessions[token]
	a.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.tokenExpired = true
	s.mu.Unlock()
}

func (a *Adapter) VerifyHash(ctx context.Context, req adapter.VerifyHashRequest) (adapter.VerifyHashResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.VerifyHashResult{}, err
	}
	if err := a.takeFault("verifyHash", req.UploadToken, -1); err != nil {
		return adapter.VerifyHashResult{}, err
	}

	s, err := a.session(req.UploadToken)
	if err != nil {
		return adapter.VerifyHashResult{}, err
	}

	if req.FileHash != "" {
		a.mu.Lock()
		url, exists := a.dedupFiles[req.FileHash]
		a.mu.Unlock()
		if exists {
			return adapter.VerifyHashResult{FileExists: true, FileURL: url}, nil
		}
		return adapter.VerifyHashResult{}, nil
	}

	var existing, missing []int
	a.mu.Lock()
	for _, entry := range req.ChunkHashes {
		_, inSession := s.chunks[entry.Index]
		if a.dedupChunks[entry.Hash] {
			existing = append(existing, entry.Index)
			if !inSession {
				// Cross-session dedup: the bytes are already known server-side,
				// so adopt them into this session too, the way a real store
				// would credit an existing chunk to a new upload session
				// instead of requiring a redundant transfer.
				s.mu.Lock()
				s.chunks[entry.Index] = chunkRecord{hash: entry.Hash}
				s.mu.Unlock()
			}
		} else if inSession {
			existing = append(existing, entry.Index)
		} else {
			missing = append(missing, entry.Index)
		}
	}
	a.mu.Unlock()

	sort.Ints(existing)
	sort.Ints(missing)
	return adapter.VerifyHashResult{ExistingChunks: existing, MissingChunks: missing}, nil
}

func (a *Adapter) UploadChunk(ctx context.Context, req adapter.UploadChunkRequest) (adapter.UploadChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.UploadChunkResult{}, err
	}
	if err := a.takeFault("uploadChunk", req.UploadToken, req.ChunkIndex); err != nil {
		return adapter.UploadChunkResult{}, err
	}

	s, err := a.session(req.UploadToken)
	if err != nil {
		return adapter.UploadChunkResult{}, err
	}

	if chunkhash.Digest(req.Bytes) != req.ChunkHash {
		return adapter.UploadChunkResult{}, fmt.Errorf("testutil: chunk %d: %w", req.ChunkIndex, uploaderrors.ErrHashMismatch)
	}

	s.mu.Lock()
	s.chunks[req.ChunkIndex] = chunkRecord{hash: req.ChunkHash, bytes: append([]byte(nil), req.Bytes...)}
	s.mu.Unlock()

	a.mu.Lock()
	a.dedupChunks[req.ChunkHash] = true
	a.mu.Unlock()

	return adapter.UploadChunkResult{Success: true, ChunkHash: req.ChunkHash}, nil
}

func (a *Adapter) MergeFile(ctx context.Context, req adapter.MergeFileRequest) (adapter.MergeFileResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.MergeFileResult{}, err
	}
	if err := a.takeFault("mergeFile", req.UploadToken, -1); err != nil {
		return adapter.MergeFileResult{}, err
	}

	s, err := a.session(req.UploadToken)
	if err != nil {
		return adapter.MergeFileResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.ChunkHashes) != len(s.chunks) {
		return adapter.MergeFileResult{}, fmt.Errorf("testutil: merge chunk count %d disagrees with session's %d: %w", len(req.ChunkHashes), len(s.chunks), uploaderrors.ErrPlanInconsistency)
	}
	for i, hash := range req.ChunkHashes {
		rec, ok := s.chunks[i]
		if !ok || rec.hash != hash {
			return adapter.MergeFileResult{}, fmt.Errorf("testutil: merge chunk %d hash disagreement: %w", i, uploaderrors.ErrPlanInconsistency)
		}
	}

	s.merged = true
	s.wholeFileHash = req.FileHash
	s.fileURL = "https://example.invalid/files/" + req.UploadToken
	s.fileID = req.UploadToken

	a.mu.Lock()
	a.dedupFiles[req.FileHash] = s.fileURL
	a.mu.Unlock()

	return adapter.MergeFileResult{Success: true, FileURL: s.fileURL, FileID: s.fileID}, nil
}

var _ adapter.Adapter = (*Adapter)(nil)
