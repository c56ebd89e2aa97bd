package multicache

import (
	"errors"
	"fmt"
)

// ErrLockTimeout is returned by GetWith when the loader lock cannot be
// acquired within the lease window. The loader is never invoked unlocked.
var ErrLockTimeout = errors.New("multicache: lock acquisition timed out")

// ErrNoLocker is returned by GetWith when a loader is supplied but no
// Locker was configured.
var ErrNoLocker = errors.New("multicache: loader requires a Locker")

// DeleteError reports a failed remote removal. A failed eviction broadcast
// is not part of it: delivery is best-effort and the coordinator only logs
// and hooks dropped broadcasts.
type DeleteError struct {
	Key       string
	RemoteErr error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %q: remote delete failed: %v", e.Key, e.RemoteErr)
}

func (e *DeleteError) Unwrap() error { return e.RemoteErr }
