package multicache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The coordinator calls them on hot paths.
type Hooks interface {
	// The membership filter pruned a remote lookup for key.
	FilterBlocked(key string)

	// The membership filter itself failed (shared filter backend outage).
	// op ∈ {"init", "add", "contains"}
	FilterError(op, key string, err error)

	// A loader lock could not be acquired within the lease window.
	LockTimeout(key string, err error)

	// An eviction broadcast was dropped; other processes keep their stale
	// local entry until its access TTL expires.
	InvalidationDropped(key string, err error)

	// The delayed half of dual-delete fired. removed reports whether the
	// second delete found anything to remove.
	DelayedDeleteFired(key string, removed bool)

	// The remote tier returned a transport error.
	// op ∈ {"get", "mget", "set", "setnx", "mset", "del"}
	RemoteError(op, key string, err error)

	// A loader returned no data; nothing was cached.
	LoaderEmpty(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FilterBlocked(string)              {}
func (NopHooks) FilterError(string, string, error) {}
func (NopHooks) LockTimeout(string, error)         {}
func (NopHooks) InvalidationDropped(string, error) {}
func (NopHooks) DelayedDeleteFired(string, bool)   {}
func (NopHooks) RemoteError(string, string, error) {}
func (NopHooks) LoaderEmpty(string)                {}
