package multicache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/multicache/codec"
	"github.com/unkn0wn-root/multicache/local"
	"github.com/unkn0wn-root/multicache/timer"
)

// Loader fetches a value from the origin (database, API, ...) on a full
// cache miss. ok=false means the origin has no data for the key; that is
// not an error, but nothing is cached either.
type Loader[V any] func(ctx context.Context) (v V, ok bool, err error)

// UpdateOp mutates the origin and reports whether the mutation took effect.
type UpdateOp func(ctx context.Context) (ok bool, err error)

// Coordinator is the high-level two-tier cache API. V is the caller's value
// type; serialization to the remote tier is handled by a pluggable Codec[V].
// The local tier stores decoded values, so hits never touch the codec.
type Coordinator[V any] interface {
	// Start initializes the membership filter (idempotent) and subscribes
	// the invalidation cleaner. Call once before use.
	Start(ctx context.Context) error
	// Close cancels the subscription, stops the owned timer wheel and drops
	// pending delayed deletes. Injected collaborators are not closed.
	Close(ctx context.Context) error

	// Single
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	GetWith(ctx context.Context, key string, loader Loader[V]) (v V, ok bool, err error)
	Put(ctx context.Context, key string, value V, ttl time.Duration) error
	PutWith(ctx context.Context, key string, loader Loader[V], ttl time.Duration) (bool, error)
	PutIfAbsent(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Update(ctx context.Context, key string, op UpdateOp) error

	// Bulk
	GetAll(ctx context.Context, keys []string) (map[string]V, bool, error)
	PutAll(ctx context.Context, values map[string]V, ttl time.Duration) error
	DeleteAll(ctx context.Context, keys []string) error

	// Local tier only (no remote traffic, no broadcast)
	InvalidateLocal(key string)
	InvalidateLocalAll(keys ...string)

	// Stats
	Stats() string
	StatsSnapshot() local.Snapshot
}

// Remote is the shared key-value tier. All calls are synchronous network
// operations and may fail with transient I/O errors; a miss is never
// reported as an error.
type Remote interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// MultiGet returns one slot per requested key, in order. A nil slot
	// means absent; a present-but-empty value is a non-nil empty slice.
	MultiGet(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if the key is absent; reports whether the
	// write took effect.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// MultiSet stores all values. The store has no atomic bulk-TTL form;
	// implementations apply ttl with per-key expiry after the bulk write.
	MultiSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Del reports whether a value was actually removed.
	Del(ctx context.Context, key string) (bool, error)
	Close(ctx context.Context) error
}

// LockHandle is a held cluster-wide lease. Release it in all cases; if the
// lease already expired, Release is a no-op.
type LockHandle interface {
	Release(ctx context.Context) error
}

// Locker is a cluster-wide named mutual-exclusion primitive. For a given
// name at most one holder exists at any instant. Acquire blocks up to the
// lease duration and returns ErrLockTimeout when the lock cannot be taken
// in that window; it never silently proceeds unlocked. A holder that never
// releases loses the lock when the lease expires.
type Locker interface {
	Acquire(ctx context.Context, name string, lease time.Duration) (LockHandle, error)
}

// Bus broadcasts key evictions to every process. Delivery is at-most-once,
// best-effort: messages may be dropped under channel failure and no retry
// is attempted.
type Bus interface {
	Publish(ctx context.Context, topic, key string) error
	// Subscribe registers handler for every key received on topic and
	// returns a cancel function. The handler runs on the subscription's
	// own goroutine.
	Subscribe(ctx context.Context, topic string, handler func(key string)) (cancel func() error, err error)
}

// Filter is a probabilistic membership set used as a penetration guard.
// Contains may return true for a key never added, but must never return
// false for a key that was added. There is no removal.
type Filter interface {
	// Init sizes the filter. Idempotent: safe to call at every startup.
	Init(ctx context.Context, expectedInsertions int64, fpRate float64) error
	Add(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
}

// Options tune the coordinator. Remote and Codec are required; everything
// else has defaults. Collaborators are injected: the coordinator never
// constructs or closes a Redis client on its own.
type Options[V any] struct {
	// Required
	Remote Remote
	Codec  c.Codec[V]

	Locker Locker // required only for GetWith
	Bus    Bus    // nil => no broadcast invalidation
	Filter Filter // consulted only when EnableFilter is true

	// Wheel runs the delayed half of dual-delete. If nil, the coordinator
	// starts its own and stops it on Close.
	Wheel *timer.Wheel

	// Store overrides the default local store (bounded LRU with
	// expire-after-access). See local/ristretto and local/bigcache.
	Store local.Store[V]

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	InitialCapacity int           // local pre-sizing; 0 => 128
	MaximumSize     int64         // local bound; 0 => 10000, -1 => unbounded
	LocalTTL        time.Duration // expire after access; 0 => 10s
	RemoteTTL       time.Duration // remote entry TTL; 0 => 30s
	DeleteDelay     time.Duration // dual-delete gap; 0 => 3s
	LockLease       time.Duration // loader lock lease; 0 => 30s

	EnableFilter   bool
	FilterCapacity int64   // 0 => 5000
	FilterFPRate   float64 // 0 => 0.05

	Topic string // invalidation channel; "" => DefaultTopic
}

func New[V any](opts Options[V]) (Coordinator[V], error) {
	return newCoordinator[V](opts)
}
