package multicache

import "time"

// DefaultTopic is the invalidation channel shared by every process unless
// Options.Topic overrides it.
const DefaultTopic = "multicache:invalidate"

const (
	defaultInitialCapacity = 128
	defaultMaximumSize     = int64(10000)
	defaultLocalTTL        = 10 * time.Second
	defaultRemoteTTL       = 30 * time.Second
	defaultDeleteDelay     = 3 * time.Second
	defaultLockLease       = 30 * time.Second
	defaultFilterCapacity  = int64(5000)
	defaultFilterFPRate    = 0.05
)

// lockPrefix scopes loader locks per key.
const lockPrefix = "lock:"

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
