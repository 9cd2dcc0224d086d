package chunkhash

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestIsDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("chunk-data"), 1000)
	assert.Equal(t, Digest(data), Digest(data))
}

func TestDigestDiffersOnDifferentContent(t *testing.T) {
	a := bytes.Repeat([]byte{0x01}, 4096)
	b := bytes.Repeat([]byte{0x02}, 4096)
	assert.NotEqual(t, Digest(a), Digest(b))
}

func TestDigestInChunksMatchesDigest(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 2_000_000) // ~16MB, spans multiple read increments
	want := Digest(data)

	got, err := DigestInChunks(context.Background(), bytes.NewReader(data), uint64(len(data)), nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDigestInChunksProgressIsMonotonic(t *testing.T) {
	data := bytes.Repeat([]byte("xyz123"), 1_000_000)

	var seen []int
	_, err := DigestInChunks(context.Background(), bytes.NewReader(data), uint64(len(data)), func(percent int) {
		seen = append(seen, percent)
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)

	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestDigestInChunksRespectsCancellation(t *testing.T) {
	data := bytes.Repeat([]byte("z"), 64*1024*1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DigestInChunks(ctx, bytes.NewReader(data), uint64(len(data)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDigestInChunksBlockingMatchesCooperative(t *testing.T) {
	data := bytes.Repeat([]byte("match"), 500_000)

	want, err := DigestInChunks(context.Background(), bytes.NewReader(data), uint64(len(data)), nil)
	require.NoError(t, err)

	got, err := DigestInChunksBlocking(bytes.NewReader(data), uint64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestDigestInChunksEmptyInput(t *testing.T) {
	got, err := DigestInChunks(context.Background(), bytes.NewReader(nil), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Digest(nil), got)
}

func TestProgressThrottleIsBounded(t *testing.T) {
	// A throttle of 200ms allows at most 5 events/sec.
	assert.LessOrEqual(t, time.Second/ProgressThrottle, time.Duration(5))
}
