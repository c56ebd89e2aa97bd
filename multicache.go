package multicache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/multicache/codec"
	"github.com/unkn0wn-root/multicache/local"
	"github.com/unkn0wn-root/multicache/timer"
)

// delayedDeleteTimeout bounds the background remote call of the second
// delete, which runs without a caller context.
const delayedDeleteTimeout = 5 * time.Second

type coordinator[V any] struct {
	remote Remote
	codec  c.Codec[V]
	locker Locker
	bus    Bus
	filter Filter

	tier *local.Tier[V]

	wheel      *timer.Wheel
	ownedWheel bool

	log   Logger
	hooks Hooks

	remoteTTL   time.Duration
	deleteDelay time.Duration
	lockLease   time.Duration

	filterEnabled bool
	filterCap     int64
	filterFP      float64

	topic string

	cleaner   *Cleaner
	closeOnce sync.Once
	closeMu   sync.Mutex
	closeErr  error
}

func newCoordinator[V any](opts Options[V]) (*coordinator[V], error) {
	if opts.Remote == nil {
		return nil, fmt.Errorf("multicache: remote tier is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("multicache: codec is required")
	}
	if opts.EnableFilter && opts.Filter == nil {
		return nil, fmt.Errorf("multicache: EnableFilter set but no Filter provided")
	}

	co := &coordinator[V]{
		remote:        opts.Remote,
		codec:         opts.Codec,
		locker:        opts.Locker,
		bus:           opts.Bus,
		filter:        opts.Filter,
		filterEnabled: opts.EnableFilter,
	}

	// defaults
	co.log = coalesce[Logger](opts.Logger, NopLogger{})
	co.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	co.remoteTTL = coalesce[time.Duration](opts.RemoteTTL, defaultRemoteTTL)
	co.deleteDelay = coalesce[time.Duration](opts.DeleteDelay, defaultDeleteDelay)
	co.lockLease = coalesce[time.Duration](opts.LockLease, defaultLockLease)
	co.filterCap = coalesce[int64](opts.FilterCapacity, defaultFilterCapacity)
	co.filterFP = coalesce[float64](opts.FilterFPRate, defaultFilterFPRate)
	co.topic = coalesce[string](opts.Topic, DefaultTopic)

	store := opts.Store
	if store == nil {
		maxSize := coalesce[int64](opts.MaximumSize, defaultMaximumSize)
		if maxSize < 0 {
			maxSize = 0 // unbounded
		}
		store = local.NewAccessStore[V](local.AccessStoreConfig{
			InitialCapacity: coalesce[int](opts.InitialCapacity, defaultInitialCapacity),
			MaxSize:         maxSize,
			TTL:             coalesce[time.Duration](opts.LocalTTL, defaultLocalTTL),
		})
	}
	co.tier = local.NewTier[V](store)

	if opts.Wheel != nil {
		co.wheel = opts.Wheel
	} else {
		co.wheel = timer.NewWheel(timer.DefaultTick, timer.DefaultSlots)
		co.ownedWheel = true
	}
	return co, nil
}

func (co *coordinator[V]) Start(ctx context.Context) error {
	if co.filterEnabled {
		if err := co.filter.Init(ctx, co.filterCap, co.filterFP); err != nil {
			co.hooks.FilterError("init", "", err)
			return fmt.Errorf("multicache: filter init: %w", err)
		}
	}
	if co.bus != nil {
		co.cleaner = NewCleaner(co.bus, co.topic, co.tier.Invalidate, co.log)
		if err := co.cleaner.Start(ctx); err != nil {
			return fmt.Errorf("multicache: cleaner subscribe: %w", err)
		}
	}
	return nil
}

func (co *coordinator[V]) Close(context.Context) error {
	co.closeOnce.Do(func() {
		co.closeMu.Lock()
		defer co.closeMu.Unlock()
		if co.cleaner != nil {
			co.closeErr = co.cleaner.Stop()
		}
		if co.ownedWheel {
			co.wheel.Stop()
		}
		if err := co.tier.Close(); err != nil && co.closeErr == nil {
			co.closeErr = err
		}
	})
	co.closeMu.Lock()
	defer co.closeMu.Unlock()
	return co.closeErr
}

// Get consults the local tier, then the membership filter, then the remote
// tier. A remote hit repopulates the local tier. Transport errors surface
// as errors, never as misses.
func (co *coordinator[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return co.tier.GetOrLoad(ctx, key, co.remoteLoad(key))
}

// remoteLoad is the tier-miss path: filter gate, then remote lookup. The
// filter only prunes the remote round-trip; see GetWith for the loader.
func (co *coordinator[V]) remoteLoad(key string) local.LoadFunc[V] {
	return func(ctx context.Context) (V, bool, error) {
		var zero V
		if co.filterEnabled {
			ok, err := co.filter.Contains(ctx, key)
			if err != nil {
				// filter outage: fall through to the remote tier rather
				// than guessing absence
				co.hooks.FilterError("contains", key, err)
				co.log.Warn("filter lookup failed; consulting remote anyway", Fields{"key": key, "err": err})
			} else if !ok {
				co.hooks.FilterBlocked(key)
				return zero, false, nil
			}
		}
		raw, ok, err := co.remote.Get(ctx, key)
		if err != nil {
			co.hooks.RemoteError("get", key, err)
			return zero, false, err
		}
		if !ok {
			return zero, false, nil
		}
		v, err := co.codec.Decode(raw)
		if err != nil {
			return zero, false, fmt.Errorf("multicache: decode %q: %w", key, err)
		}
		return v, true, nil
	}
}

// GetWith is Get plus a caller-supplied loader for full misses. The whole
// miss path runs under the tier's single-flight, so within one process the
// loader executes at most once per key at a time; across processes the
// cluster lock serializes it per lease. The loader runs even when the
// filter pruned the remote lookup - the filter guards the remote tier, not
// the origin.
func (co *coordinator[V]) GetWith(ctx context.Context, key string, loader Loader[V]) (V, bool, error) {
	var zero V
	if loader == nil {
		return co.Get(ctx, key)
	}
	if co.locker == nil {
		return zero, false, ErrNoLocker
	}
	return co.tier.GetOrLoad(ctx, key, func(ctx context.Context) (V, bool, error) {
		if v, ok, err := co.remoteLoad(key)(ctx); ok || err != nil {
			return v, ok, err
		}

		handle, err := co.locker.Acquire(ctx, lockPrefix+key, co.lockLease)
		if err != nil {
			if errors.Is(err, ErrLockTimeout) {
				co.hooks.LockTimeout(key, err)
			}
			return zero, false, err
		}
		v, ok, err := func() (V, bool, error) {
			defer func() {
				if rerr := handle.Release(ctx); rerr != nil {
					co.log.Warn("lock release failed", Fields{"key": key, "err": rerr})
				}
			}()
			return loader(ctx)
		}()
		if err != nil {
			return zero, false, err
		}
		if !ok {
			co.hooks.LoaderEmpty(key)
			return zero, false, nil
		}
		if perr := co.Put(ctx, key, v, 0); perr != nil {
			// the value was loaded; a failed write-through must not turn a
			// successful read into an error
			co.log.Error("write-through after load failed", Fields{"key": key, "err": perr})
		}
		return v, true, nil
	})
}

// GetAll returns the requested keys from the local tier only when every one
// of them is resident; otherwise a single remote MultiGet supersedes the
// partial local result and repopulates the tier. ok=false means neither
// tier had anything.
func (co *coordinator[V]) GetAll(ctx context.Context, keys []string) (map[string]V, bool, error) {
	if len(keys) == 0 {
		return nil, false, nil
	}
	if lv := co.tier.GetAll(keys); len(lv) == len(keys) {
		return lv, true, nil
	}

	raws, err := co.remote.MultiGet(ctx, keys)
	if err != nil {
		co.hooks.RemoteError("mget", "", err)
		return nil, false, err
	}
	out := make(map[string]V, len(keys))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		v, derr := co.codec.Decode(raw)
		if derr != nil {
			co.log.Warn("corrupt remote entry skipped", Fields{"key": keys[i], "err": derr})
			continue
		}
		out[keys[i]] = v
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	co.tier.PutAll(out)
	return out, true, nil
}

// Put writes through: membership filter first (so the filter never misses
// a written key), then the remote tier with TTL, then the local tier.
// ttl 0 uses the configured remote default.
func (co *coordinator[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = co.remoteTTL
	}
	if co.filterEnabled {
		if err := co.filter.Add(ctx, key); err != nil {
			co.hooks.FilterError("add", key, err)
			return fmt.Errorf("multicache: filter add %q: %w", key, err)
		}
	}
	enc, err := co.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("multicache: encode %q: %w", key, err)
	}
	if err := co.remote.Set(ctx, key, enc, ttl); err != nil {
		co.hooks.RemoteError("set", key, err)
		return err
	}
	co.tier.Put(key, value)
	return nil
}

// PutWith runs the insert operation first and writes through only when it
// produced data. false with a nil error means the operation yielded
// nothing; nothing was cached anywhere.
func (co *coordinator[V]) PutWith(ctx context.Context, key string, loader Loader[V], ttl time.Duration) (bool, error) {
	if loader == nil {
		return false, fmt.Errorf("multicache: PutWith requires a loader")
	}
	v, ok, err := loader(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		co.hooks.LoaderEmpty(key)
		return false, nil
	}
	if err := co.Put(ctx, key, v, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// PutIfAbsent writes conditionally to the remote tier and populates the
// local tier only when it does not already hold the key. The local write
// does not re-check whether the remote SETNX took effect, so a lost race
// leaves the local tier briefly ahead of the authoritative value; local
// TTL bounds that window.
func (co *coordinator[V]) PutIfAbsent(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = co.remoteTTL
	}
	enc, err := co.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("multicache: encode %q: %w", key, err)
	}
	took, err := co.remote.SetNX(ctx, key, enc, ttl)
	if err != nil {
		co.hooks.RemoteError("setnx", key, err)
		return err
	}
	if !took {
		co.log.Debug("putIfAbsent lost the remote race", Fields{"key": key})
	}
	if _, ok := co.tier.Get(key); !ok {
		co.tier.Put(key, value)
	}
	return nil
}

// PutAll writes all entries through in bulk. The remote store has no
// atomic bulk-TTL form, so the TTL is applied per key after the bulk write.
func (co *coordinator[V]) PutAll(ctx context.Context, values map[string]V, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = co.remoteTTL
	}
	if co.filterEnabled {
		for k := range values {
			if err := co.filter.Add(ctx, k); err != nil {
				co.hooks.FilterError("add", k, err)
				return fmt.Errorf("multicache: filter add %q: %w", k, err)
			}
		}
	}
	enc := make(map[string][]byte, len(values))
	for k, v := range values {
		b, err := co.codec.Encode(v)
		if err != nil {
			return fmt.Errorf("multicache: encode %q: %w", k, err)
		}
		enc[k] = b
	}
	if err := co.remote.MultiSet(ctx, enc, ttl); err != nil {
		co.hooks.RemoteError("mset", "", err)
		return err
	}
	co.tier.PutAll(values)
	return nil
}

// Update runs the origin mutation and, when it reports success,
// invalidates rather than refreshes: the next read reloads the new value.
func (co *coordinator[V]) Update(ctx context.Context, key string, op UpdateOp) error {
	ok := true
	if op != nil {
		var err error
		ok, err = op(ctx)
		if err != nil {
			return err
		}
	}
	if !ok {
		return nil
	}
	_, err := co.Delete(ctx, key)
	return err
}

// Delete removes the key from the remote tier and, when a value was
// actually removed, broadcasts the eviction and schedules a second delete
// after the configured delay. The second delete closes the window where a
// concurrent reader repopulated the tiers from a stale source; a fresh
// write landing inside the window is removed too.
func (co *coordinator[V]) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := co.doDelete(ctx, key)
	if err != nil || !removed {
		return removed, err
	}
	co.wheel.ScheduleOnce(co.deleteDelay, func() {
		dctx, cancel := context.WithTimeout(context.Background(), delayedDeleteTimeout)
		defer cancel()
		again, derr := co.doDelete(dctx, key)
		if derr != nil {
			co.log.Error("delayed delete failed", Fields{"key": key, "err": derr})
		}
		co.hooks.DelayedDeleteFired(key, again)
	})
	return true, nil
}

// doDelete is one half of the dual-delete: remote removal, then eviction
// broadcast. Local eviction rides the same subscription path as every
// other process; a dropped broadcast leaves stale local entries to age out
// via their access TTL.
func (co *coordinator[V]) doDelete(ctx context.Context, key string) (bool, error) {
	removed, err := co.remote.Del(ctx, key)
	if err != nil {
		co.hooks.RemoteError("del", key, err)
		return false, &DeleteError{Key: key, RemoteErr: err}
	}
	if !removed {
		return false, nil
	}
	if co.bus == nil {
		co.tier.Invalidate(key)
		return true, nil
	}
	if perr := co.bus.Publish(ctx, co.topic, key); perr != nil {
		co.hooks.InvalidationDropped(key, perr)
		co.log.Warn("eviction broadcast dropped", Fields{"key": key, "err": perr})
	}
	return true, nil
}

// DeleteAll deletes each key independently; there is no atomicity across
// keys. All failures are joined into one error.
func (co *coordinator[V]) DeleteAll(ctx context.Context, keys []string) error {
	var errs []error
	for _, k := range keys {
		if _, err := co.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (co *coordinator[V]) InvalidateLocal(key string) { co.tier.Invalidate(key) }

func (co *coordinator[V]) InvalidateLocalAll(keys ...string) { co.tier.InvalidateAll(keys...) }

func (co *coordinator[V]) Stats() string { return formatStats(co.tier.Stats()) }

func (co *coordinator[V]) StatsSnapshot() local.Snapshot { return co.tier.Stats() }
