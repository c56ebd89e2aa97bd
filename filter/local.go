package filter

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	mc "github.com/unkn0wn-root/multicache"
)

// Local is an in-process bloom filter for single-node deployments and
// tests. State is per process: other replicas do not see additions, and a
// restart forgets everything, which widens the false-negative-free
// guarantee only to keys this process wrote. Multi-replica setups should
// use RedisBloom.
type Local struct {
	mu sync.RWMutex
	b  *bloom.BloomFilter
}

var _ mc.Filter = (*Local)(nil)

func NewLocal() *Local { return &Local{} }

// Init sizes the filter once; repeated calls keep the first sizing.
func (f *Local) Init(_ context.Context, expectedInsertions int64, fpRate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.b != nil {
		return nil
	}
	f.b = bloom.NewWithEstimates(uint(expectedInsertions), fpRate)
	return nil
}

func (f *Local) Add(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.b == nil {
		return ErrNotInitialized
	}
	f.b.AddString(key)
	return nil
}

func (f *Local) Contains(_ context.Context, key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.b == nil {
		return false, ErrNotInitialized
	}
	return f.b.TestString(key), nil
}
