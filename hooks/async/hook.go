// Package asynchook decouples hook execution from cache hot paths: events
// are queued and replayed on worker goroutines, and dropped when the queue
// is full rather than blocking a cache operation.
//
// usage:
//
//	raw := myMetricsHooks{}
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := multicache.New[User](multicache.Options[User]{
//	    Remote: remoteTier,
//	    Codec:  codec.JSON[User]{},
//	    Hooks:  hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/multicache"
)

type Hooks struct {
	inner multicache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ multicache.Hooks = (*Hooks)(nil)

func New(inner multicache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) FilterBlocked(k string)        { h.try(func() { h.inner.FilterBlocked(k) }) }
func (h *Hooks) LoaderEmpty(k string)          { h.try(func() { h.inner.LoaderEmpty(k) }) }
func (h *Hooks) LockTimeout(k string, e error) { h.try(func() { h.inner.LockTimeout(k, e) }) }
func (h *Hooks) FilterError(op, k string, e error) {
	h.try(func() { h.inner.FilterError(op, k, e) })
}
func (h *Hooks) InvalidationDropped(k string, e error) {
	h.try(func() { h.inner.InvalidationDropped(k, e) })
}
func (h *Hooks) DelayedDeleteFired(k string, removed bool) {
	h.try(func() { h.inner.DelayedDeleteFired(k, removed) })
}
func (h *Hooks) RemoteError(op, k string, e error) {
	h.try(func() { h.inner.RemoteError(op, k, e) })
}
