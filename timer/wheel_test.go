package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleOnceFiresExactlyOnce(t *testing.T) {
	w := NewWheel(10*time.Millisecond, 64)
	defer w.Stop()

	var fired atomic.Int32
	start := time.Now()
	done := make(chan struct{})
	w.ScheduleOnce(50*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("task never fired")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("task fired early after %s", elapsed)
	}

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Fatalf("task fired %d times", n)
	}
}

// A delay that is not a whole number of ticks must still wait it out in
// full, wherever in the tick phase it was scheduled.
func TestNonMultipleDelayNeverFiresEarly(t *testing.T) {
	w := NewWheel(100*time.Millisecond, 64)
	defer w.Stop()

	const delay = 150 * time.Millisecond
	const tasks = 8
	var fired, early atomic.Int32
	for i := 0; i < tasks; i++ {
		start := time.Now()
		w.ScheduleOnce(delay, func() {
			if time.Since(start) < delay {
				early.Add(1)
			}
			fired.Add(1)
		})
		// spread the schedule points across one tick period
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() != tasks {
		if time.Now().After(deadline) {
			t.Fatalf("only %d/%d tasks fired", fired.Load(), tasks)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := early.Load(); n != 0 {
		t.Fatalf("%d tasks fired before their %s delay", n, delay)
	}
}

// Delays longer than one wheel revolution still fire (rounds bookkeeping).
func TestScheduleBeyondOneRevolution(t *testing.T) {
	w := NewWheel(5*time.Millisecond, 8) // revolution = 40ms
	defer w.Stop()

	done := make(chan struct{})
	w.ScheduleOnce(100*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("multi-revolution task never fired")
	}
}

func TestConcurrentTasksAllFire(t *testing.T) {
	w := NewWheel(10*time.Millisecond, 64)
	defer w.Stop()

	var fired atomic.Int32
	const tasks = 50
	for i := 0; i < tasks; i++ {
		w.ScheduleOnce(time.Duration(i%5)*10*time.Millisecond, func() {
			fired.Add(1)
		})
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() != tasks {
		if time.Now().After(deadline) {
			t.Fatalf("only %d/%d tasks fired", fired.Load(), tasks)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStopDropsPending(t *testing.T) {
	w := NewWheel(10*time.Millisecond, 64)

	var fired atomic.Int32
	w.ScheduleOnce(300*time.Millisecond, func() { fired.Add(1) })
	w.Stop()

	time.Sleep(500 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("pending task fired after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWheel(10*time.Millisecond, 64)
	w.Stop()
	w.Stop()
}
