package task

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/chunkflow/pkg/adapter"
)

// verifyBatcher coalesces per-chunk verifyHash probes that arrive within a
// short window into a single call, to amortize round trips across chunks
// that finish hashing at roughly the same time.
type verifyBatcher struct {
	window time.Duration
	flush  func(entries []adapter.ChunkHashEntry) (existing map[int]bool, err error)

	mu      sync.Mutex
	pending []pendingVerify
	timer   *time.Timer
}

type pendingVerify struct {
	entry   adapter.ChunkHashEntry
	respond chan verifyOutcome
}

type verifyOutcome struct {
	exists bool
	err    error
}

func newVerifyBatcher(window time.Duration, flush func([]adapter.ChunkHashEntry) (map[int]bool, error)) *verifyBatcher {
	return &verifyBatcher{window: window, flush: flush}
}

// request enqueues one chunk's hash for the next batch flush and blocks
// until that batch resolves (or ctx is cancelled).
func (b *verifyBatcher) request(ctx context.Context, entry adapter.ChunkHashEntry) (bool, error) {
	respond := make(chan verifyOutcome, 1)

	b.mu.Lock()
	b.pending = append(b.pending, pendingVerify{entry: entry, respond: respond})
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.doFlush)
	}
	b.mu.Unlock()

	select {
	case out := <-respond:
		return out.exists, out.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (b *verifyBatcher) doFlush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	entries := make([]adapter.ChunkHashEntry, len(batch))
	for i, p := range batch {
		entries[i] = p.entry
	}

	existing, err := b.flush(entries)
	for _, p := range batch {
		if err != nil {
			p.respond <- verifyOutcome{err: err}
			continue
		}
		p.respond <- verifyOutcome{exists: existing[p.entry.Index]}
	}
}
