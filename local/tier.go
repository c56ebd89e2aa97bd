// Package local implements the process-local cache tier: a bounded store
// with access-based expiry, single-flight loading and hit/miss/load
// accounting. It is a strict cache of the remote tier, never an independent
// source of truth.
package local

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces a value for a missing key. ok=false means there is no
// data to cache; it is recorded as a load failure but not an error.
type LoadFunc[V any] func(ctx context.Context) (v V, ok bool, err error)

// Tier is the process-local cache tier. It is safe for concurrent use.
// GetOrLoad is the single-flight point: concurrent callers for the same
// missing key share one load invocation and its result.
type Tier[V any] struct {
	store Store[V]
	stats Stats
	group singleflight.Group
}

// NewTier wraps store with load coordination and statistics. The tier owns
// the store: Close closes it.
func NewTier[V any](store Store[V]) *Tier[V] {
	return &Tier[V]{store: store}
}

type loadResult[V any] struct {
	v  V
	ok bool
}

// Get returns the cached value if present, renewing its access expiry.
func (t *Tier[V]) Get(key string) (V, bool) {
	v, ok := t.store.Get(key)
	if ok {
		t.stats.hit()
	} else {
		t.stats.miss()
	}
	return v, ok
}

// GetOrLoad returns the cached value or runs load to produce one, caching
// it on success. At most one load per key runs at a time within this
// process; concurrent callers block and receive the shared result.
func (t *Tier[V]) GetOrLoad(ctx context.Context, key string, load LoadFunc[V]) (V, bool, error) {
	var zero V
	if v, ok := t.store.Get(key); ok {
		t.stats.hit()
		return v, true, nil
	}
	t.stats.miss()

	res, err, _ := t.group.Do(key, func() (any, error) {
		// another caller may have populated the key while we queued
		if v, ok := t.store.Get(key); ok {
			return loadResult[V]{v: v, ok: true}, nil
		}
		start := time.Now()
		v, ok, err := load(ctx)
		elapsed := time.Since(start).Nanoseconds()
		if err != nil {
			t.stats.loadFailure(elapsed)
			return nil, err
		}
		if !ok {
			t.stats.loadFailure(elapsed)
			return loadResult[V]{}, nil
		}
		t.stats.loadSuccess(elapsed)
		t.store.Set(key, v)
		return loadResult[V]{v: v, ok: true}, nil
	})
	if err != nil {
		return zero, false, err
	}
	r := res.(loadResult[V])
	return r.v, r.ok, nil
}

// GetAll returns the present subset of keys. Every key counts as one
// request toward hit/miss statistics.
func (t *Tier[V]) GetAll(keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := t.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

func (t *Tier[V]) Put(key string, value V) {
	t.store.Set(key, value)
}

func (t *Tier[V]) PutAll(values map[string]V) {
	for k, v := range values {
		t.store.Set(k, v)
	}
}

// Invalidate drops a single entry.
func (t *Tier[V]) Invalidate(key string) {
	t.store.Delete(key)
}

// InvalidateAll drops the given entries; with no arguments it clears the
// whole tier.
func (t *Tier[V]) InvalidateAll(keys ...string) {
	if len(keys) == 0 {
		t.store.Clear()
		return
	}
	for _, k := range keys {
		t.store.Delete(k)
	}
}

// Stats returns a point-in-time copy of the tier counters, merged with the
// store's eviction counters.
func (t *Tier[V]) Stats() Snapshot {
	ss := t.store.Stats()
	return Snapshot{
		Hits:           t.stats.hits.Load(),
		Misses:         t.stats.misses.Load(),
		LoadSuccesses:  t.stats.loadSuccesses.Load(),
		LoadFailures:   t.stats.loadFailures.Load(),
		TotalLoadTime:  t.stats.totalLoadTime.Load(),
		Evictions:      ss.Evictions,
		EvictionWeight: ss.EvictionWeight,
	}
}

func (t *Tier[V]) Close() error { return t.store.Close() }
