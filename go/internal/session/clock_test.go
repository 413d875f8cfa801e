package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// helper: receive one tick with a timeout so tests never hang
func recvTick(t *testing.T, ch <-chan int, within time.Duration) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for tick")
		return 0 // unreachable
	}
}

func recvNoTick(t *testing.T, ch <-chan int, within time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("expected no tick within %v, but got: %d", within, v)
	case <-time.After(within):
		// good: no tick
	}
}

func TestSnapshotClock_CountsDownToZeroAndStops(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks := make(chan int, 64)
	clk := NewSnapshotClock(fc, func(s int) { ticks <- s })
	defer clk.Stop()

	clk.Set(120, 45)

	// The snapshot itself publishes immediately.
	if got := recvTick(t, ticks, time.Second); got != 45 {
		t.Fatalf("after snapshot: want 45, got %d", got)
	}

	// Wait for the ticker goroutine to register with the fake clock.
	fc.BlockUntil(1)

	prev := 45
	for want := 44; want >= 0; want-- {
		fc.Advance(time.Second)
		got := recvTick(t, ticks, time.Second)
		if got != want {
			t.Fatalf("want %d, got %d", want, got)
		}
		if got > prev {
			t.Fatalf("countdown not monotonic: %d after %d", got, prev)
		}
		prev = got
	}

	// Countdown hit zero: the interval must have stopped, no further ticks.
	recvNoTick(t, ticks, 100*time.Millisecond)
	if got := clk.Remaining(); got != 0 {
		t.Fatalf("after zero: want remaining 0, got %d", got)
	}
}

func TestSnapshotClock_NewSnapshotSupersedesRunningCountdown(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks := make(chan int, 64)
	clk := NewSnapshotClock(fc, func(s int) { ticks <- s })
	defer clk.Stop()

	clk.Set(120, 45)
	if got := recvTick(t, ticks, time.Second); got != 45 {
		t.Fatalf("want 45, got %d", got)
	}

	// Re-sync mid-countdown: the new value wins immediately, whatever was
	// running before.
	clk.Set(120, 10)
	if got := recvTick(t, ticks, time.Second); got != 10 {
		t.Fatalf("after re-sync: want 10, got %d", got)
	}
	if got := clk.Remaining(); got != 10 {
		t.Fatalf("Remaining after re-sync: want 10, got %d", got)
	}
}

func TestSnapshotClock_SupersededCountdownNeverLandsAfterResync(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks := make(chan int, 64)
	clk := NewSnapshotClock(fc, func(s int) { ticks <- s })
	defer clk.Stop()

	clk.Set(120, 45)
	if got := recvTick(t, ticks, time.Second); got != 45 {
		t.Fatalf("want 45, got %d", got)
	}
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	if got := recvTick(t, ticks, time.Second); got != 44 {
		t.Fatalf("want 44, got %d", got)
	}

	clk.Set(120, 10)
	if got := recvTick(t, ticks, time.Second); got != 10 {
		t.Fatalf("after re-sync: want 10, got %d", got)
	}

	// Any value the old countdown had in flight must be silenced once the
	// re-sync value is out: everything observed from here on belongs to the
	// new countdown.
	var seen []int
	for i := 0; i < 3; i++ {
		fc.Advance(time.Second)
		select {
		case v := <-ticks:
			seen = append(seen, v)
		case <-time.After(200 * time.Millisecond):
		}
	}
	prev := 10
	for _, v := range seen {
		if v > 10 {
			t.Fatalf("stale tick from the superseded countdown landed after re-sync: %d (seen %v)", v, seen)
		}
		if v >= prev {
			t.Fatalf("countdown not monotonic after re-sync: %d after %d (seen %v)", v, prev, seen)
		}
		prev = v
	}
	if len(seen) == 0 {
		t.Fatalf("new countdown never ticked after re-sync")
	}
}

func TestSnapshotClock_ZeroSnapshotPublishesAndDoesNotTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks := make(chan int, 8)
	clk := NewSnapshotClock(fc, func(s int) { ticks <- s })
	defer clk.Stop()

	clk.Set(60, 0)
	if got := recvTick(t, ticks, time.Second); got != 0 {
		t.Fatalf("want 0, got %d", got)
	}
	fc.Advance(5 * time.Second)
	recvNoTick(t, ticks, 100*time.Millisecond)
}

func TestSnapshotClock_NegativeRemainingClampsToZero(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks := make(chan int, 8)
	clk := NewSnapshotClock(fc, func(s int) { ticks <- s })
	defer clk.Stop()

	clk.Set(60, -5)
	if got := recvTick(t, ticks, time.Second); got != 0 {
		t.Fatalf("want clamp to 0, got %d", got)
	}
}

func TestSnapshotClock_StopHaltsTicker(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks := make(chan int, 64)
	clk := NewSnapshotClock(fc, func(s int) { ticks <- s })

	clk.Set(30, 30)
	_ = recvTick(t, ticks, time.Second) // drain the snapshot publish
	fc.BlockUntil(1)

	clk.Stop()
	fc.Advance(5 * time.Second)
	recvNoTick(t, ticks, 100*time.Millisecond)

	// Stop is idempotent.
	clk.Stop()
}
