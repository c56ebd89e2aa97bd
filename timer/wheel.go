// Package timer provides a hashed wheel timer for single-shot delayed
// tasks. Unlike a per-task time.Timer, the wheel amortizes many pending
// timeouts over one ticking goroutine, which fits fire-and-forget workloads
// like delayed cache deletes.
package timer

import (
	"sync"
	"time"
)

const (
	// DefaultTick bounds timing precision: a task fires within two ticks
	// after its delay has elapsed, never before.
	DefaultTick  = 100 * time.Millisecond
	DefaultSlots = 512
)

type timeout struct {
	rounds int
	task   func()
}

// Wheel is a hashed wheel timer. Tasks are bucketed into slots by their
// expiry tick and fire on the wheel's own goroutine, independent of the
// scheduling caller. No ordering guarantee is made between tasks.
type Wheel struct {
	tick  time.Duration
	slots []map[*timeout]struct{}

	mu  sync.Mutex
	pos int

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWheel creates and starts a wheel. tick <= 0 uses DefaultTick;
// slots <= 0 uses DefaultSlots.
func NewWheel(tick time.Duration, slots int) *Wheel {
	if tick <= 0 {
		tick = DefaultTick
	}
	if slots <= 0 {
		slots = DefaultSlots
	}
	w := &Wheel{
		tick:   tick,
		slots:  make([]map[*timeout]struct{}, slots),
		ticker: time.NewTicker(tick),
		stopCh: make(chan struct{}),
	}
	for i := range w.slots {
		w.slots[i] = make(map[*timeout]struct{})
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// ScheduleOnce runs task once after at least delay has elapsed. The task
// runs on the wheel goroutine; long-running tasks should hand off to their
// own goroutine. Scheduling on a stopped wheel is a no-op.
func (w *Wheel) ScheduleOnce(delay time.Duration, task func()) {
	if task == nil {
		return
	}
	// round the delay up to whole ticks, plus one extra: the current tick
	// is already in flight, and a task must never fire before its delay
	// has fully elapsed
	ticks := int((delay+w.tick-1)/w.tick) + 1

	w.mu.Lock()
	slot := (w.pos + ticks) % len(w.slots)
	w.slots[slot][&timeout{rounds: (ticks - 1) / len(w.slots), task: task}] = struct{}{}
	w.mu.Unlock()
}

// Stop halts the wheel and discards pending tasks. Safe to call more than
// once.
func (w *Wheel) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.ticker.Stop()
		w.wg.Wait()
	})
}

func (w *Wheel) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ticker.C:
			w.advance()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Wheel) advance() {
	w.mu.Lock()
	w.pos = (w.pos + 1) % len(w.slots)
	bucket := w.slots[w.pos]
	var due []func()
	for to := range bucket {
		if to.rounds > 0 {
			to.rounds--
			continue
		}
		due = append(due, to.task)
		delete(bucket, to)
	}
	w.mu.Unlock()

	for _, task := range due {
		task()
	}
}
