// Package multicache coordinates a bounded in-process cache tier with a
// shared Redis tier, read-through and write-through, while protecting the
// backing data source from cache penetration and cache stampede.
//
// Components:
//   - local.Tier: bounded process-local cache, expire-after-access,
//     single-flight loads (at most one loader per key per process).
//   - Remote: shared key-value store (Redis), authoritative across processes.
//   - Filter: probabilistic membership set. When enabled it prunes remote
//     round-trips for keys that were never written. It gates only the remote
//     lookup, never a caller-supplied loader, so penetration protection is
//     partial: origin loads still happen on a full miss.
//   - Locker: cluster-wide named lock with a lease, guarding loaders so that
//     a missing hot key is recomputed once per lease, not per caller.
//   - Bus: pub/sub broadcast of "evict this key" to every process
//     (at-most-once, best-effort).
//   - timer.Wheel: single-shot delayed tasks for the second half of the
//     dual-delete protocol.
//
// Read path: local -> filter -> remote -> loader (locked). Write path:
// filter add -> remote set with TTL -> local put. Delete path: remote
// delete -> broadcast eviction -> delayed second delete (default 3s) to
// close the window where a concurrent reader repopulates the tiers from a
// stale source.
//
// Consistency is bounded and eventual: a lost invalidation leaves a stale
// local entry until its access TTL expires; a write landing inside the
// dual-delete window is removed by the second delete.
package multicache
