// Package chunkhash computes the content-address digest used for
// deduplication and instant upload. It is a fast, non-cryptographic 128-bit
// hash (XXH3-128, via zeebo/xxh3) — explicitly not a tamper-detection
// mechanism — that MUST match whatever digest the server computes over the
// same bytes.
//
// DigestInChunks never holds the whole file in memory: it reads and hashes
// in bounded increments so a caller driving it from a goroutine can still
// interleave other work, and reports progress at a bounded rate so a UI
// repainting on every callback doesn't fall behind a fast local disk.
package chunkhash

import (
	"context"
	"encoding/hex"
	"io"
	"runtime"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/marmos91/chunkflow/pkg/bufpool"
)

// ReadIncrement bounds how much is read (and hashed) between progress
// checks and cancellation checks — a few megabytes, per the requirement
// that hashing a large file must yield at least every few megabytes.
const ReadIncrement = 4 * 1024 * 1024

// ProgressThrottle is the minimum interval between onProgress calls: no
// finer than 5 events per second.
const ProgressThrottle = 200 * time.Millisecond

// ProgressFunc receives a monotonic 0-100 completion percentage.
type ProgressFunc func(percent int)

// Digest computes the content address of a byte slice already in memory —
// the common case for a single chunk once it has been sliced from the file
// handle.
func Digest(data []byte) string {
	sum := xxh3.Hash128(data)
	b := sum.Bytes()
	return hex.EncodeToString(b[:])
}

// DigestInChunks computes the content address of totalSize bytes read from
// r, reporting progress through onProgress (which may be nil) and
// respecting ctx cancellation between read increments. Intended for the
// whole-file digest, which runs concurrently with chunk transfer and must
// not monopolize whatever goroutine drives it.
func DigestInChunks(ctx context.Context, r io.Reader, totalSize uint64, onProgress ProgressFunc) (string, error) {
	hasher := xxh3.New128()
	buf := bufpool.Get(ReadIncrement)
	defer bufpool.Put(buf)

	var read uint64
	var lastEmit time.Time
	lastPercent := -1

	emit := func(force bool) {
		if onProgress == nil || totalSize == 0 {
			return
		}
		now := time.Now()
		if !force && now.Sub(lastEmit) < ProgressThrottle {
			return
		}
		percent := int(read * 100 / totalSize)
		if percent == lastPercent && !force {
			return
		}
		lastEmit = now
		lastPercent = percent
		onProgress(percent)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			read += uint64(n)
			emit(false)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		// Cooperative checkpoint between read increments.
		runtime.Gosched()
	}

	emit(true)

	sum := hasher.Sum128()
	b := sum.Bytes()
	return hex.EncodeToString(b[:]), nil
}

// DigestInChunksBlocking computes the same digest as DigestInChunks but
// without yielding between increments or throttling progress. It exists
// only to give benchmarks a baseline to compare the cooperative path
// against; production code MUST NOT call it.
func DigestInChunksBlocking(r io.Reader, totalSize uint64) (string, error) {
	hasher := xxh3.New128()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	sum := hasher.Sum128()
	b := sum.Bytes()
	return hex.EncodeToString(b[:]), nil
}
