// Package controller implements the dynamic chunk-size controller: a pure
// function of observed per-chunk upload latency that keeps the nominal
// chunk size within [minSize, maxSize]. It is deliberately uncoupled from
// the transport — it only ever sees a duration — so it stays trivial to
// test against a synthetic sequence of latencies.
package controller

import (
	"sync"
	"time"
)

// DefaultTargetLatency is the controller's target upload latency per chunk.
const DefaultTargetLatency = 3000 * time.Millisecond

// Defaults for the chunk-size bounds, per the configuration surface.
const (
	DefaultMinSize = 256 * 1024
	DefaultMaxSize = 10 * 1024 * 1024
	DefaultStart   = 1024 * 1024
)

// Controller holds the current nominal chunk size and adjusts it after
// every observed chunk completion. Safe for concurrent use: the dispatch
// loop observes latencies from multiple in-flight chunks concurrently, but
// only the size chosen for the next not-yet-started chunk is ever read.
type Controller struct {
	mu               sync.Mutex
	minSize, maxSize uint64
	targetLatency    time.Duration
	current          uint64
}

// New constructs a Controller. start is clamped into [minSize, maxSize].
func New(minSize, maxSize, start uint64, targetLatency time.Duration) *Controller {
	if targetLatency <= 0 {
		targetLatency = DefaultTargetLatency
	}
	c := &Controller{minSize: minSize, maxSize: maxSize, targetLatency: targetLatency}
	c.current = clamp(start, minSize, maxSize)
	return c
}

// Current returns the chunk size to use for the next not-yet-started
// descriptor. In-flight chunks keep whatever size they were dispatched
// with; this value only matters at the moment a new descriptor is chosen.
func (c *Controller) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Observe feeds one chunk's observed upload wall time into the controller
// and returns the (possibly updated) size to use next.
//
//   - latency < 0.5*target  → double, capped at maxSize
//   - latency > 1.5*target  → halve, floored at minSize
//   - otherwise             → unchanged
func (c *Controller) Observe(latency time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	half := c.targetLatency / 2
	oneAndHalf := c.targetLatency + c.targetLatency/2

	switch {
	case latency < half:
		c.current = clamp(c.current*2, c.minSize, c.maxSize)
	case latency > oneAndHalf:
		c.current = clamp(c.current/2, c.minSize, c.maxSize)
	}
	return c.current
}

func clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
