package session

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SnapshotClock turns sparse server timer snapshots into a smooth per-second
// countdown. The server stays the source of truth: every snapshot re-anchors
// endAt against the local clock and discards whatever countdown was running.
// Between snapshots a 1-second ticker publishes wall-clock-derived values, so
// the display ticks even when push events do not arrive every second.
type SnapshotClock struct {
	clock  clockwork.Clock
	onTick func(secondsLeft int)

	mu      sync.Mutex
	endAt   time.Time
	gen     int // invalidates the previous ticker goroutine on re-anchor
	running bool
	stopCh  chan struct{}

	// pubMu orders publications: once a snapshot bumps gen, no tick from the
	// superseded countdown can land after the new countdown's first value.
	pubMu sync.Mutex
}

// NewSnapshotClock creates a stopped clock. onTick runs on the clock's own
// goroutine, once per second while a countdown runs and a final time when it
// hits zero; it must not call back into the clock.
func NewSnapshotClock(clock clockwork.Clock, onTick func(secondsLeft int)) *SnapshotClock {
	return &SnapshotClock{clock: clock, onTick: onTick}
}

// Set anchors a fresh snapshot and (re)starts the countdown, superseding any
// running one. remainingSec is clamped at zero. The snapshot value itself is
// published right away, from the countdown goroutine.
func (c *SnapshotClock) Set(totalSec, remainingSec int) {
	if remainingSec < 0 {
		remainingSec = 0
	}

	c.mu.Lock()
	c.stopLocked()
	c.endAt = c.clock.Now().Add(time.Duration(remainingSec) * time.Second)
	c.gen++
	gen := c.gen

	if remainingSec == 0 {
		c.mu.Unlock()
		go c.publishFor(gen, 0)
		return
	}

	c.running = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	go c.tickLoop(gen, stopCh, remainingSec)
}

// Stop halts the countdown. Safe to call in any state and required on
// session teardown; a leaked ticker would keep firing into a stale session.
func (c *SnapshotClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *SnapshotClock) stopLocked() {
	// Bump gen unconditionally so any in-flight publication, including a
	// zero-snapshot's, is invalidated too.
	c.gen++
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

// Remaining computes the current seconds left, clamped at zero.
func (c *SnapshotClock) Remaining() int {
	c.mu.Lock()
	endAt := c.endAt
	c.mu.Unlock()
	return secondsUntil(c.clock, endAt)
}

func (c *SnapshotClock) tickLoop(gen int, stopCh chan struct{}, first int) {
	c.publishFor(gen, first)

	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			stale := gen != c.gen
			endAt := c.endAt
			c.mu.Unlock()
			if stale {
				return
			}

			left := secondsUntil(c.clock, endAt)
			c.publishFor(gen, left)
			if left == 0 {
				c.mu.Lock()
				if gen == c.gen {
					c.running = false
				}
				c.mu.Unlock()
				return
			}
		}
	}
}

// publishFor delivers a tick only if gen is still the live countdown. The
// gen re-check happens under pubMu, so a superseded goroutine that lost the
// race to a new Set is silenced instead of overwriting the fresher value.
func (c *SnapshotClock) publishFor(gen, secondsLeft int) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	live := gen == c.gen
	c.mu.Unlock()
	if !live || c.onTick == nil {
		return
	}
	c.onTick(secondsLeft)
}

func secondsUntil(clock clockwork.Clock, endAt time.Time) int {
	if endAt.IsZero() {
		return 0
	}
	left := int(math.Round(endAt.Sub(clock.Now()).Seconds()))
	if left < 0 {
		return 0
	}
	return left
}
