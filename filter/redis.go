// Package filter implements the membership filter guarding the remote tier
// against cache penetration. Both implementations are bloom filters: false
// positives are possible, false negatives are not, and there is no removal.
package filter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	goredis "github.com/redis/go-redis/v9"

	mc "github.com/unkn0wn-root/multicache"
)

var (
	ErrNilClient      = errors.New("filter: nil redis client")
	ErrNotInitialized = errors.New("filter: Init was not called")
)

// RedisBloom is a bloom filter over a shared Redis bitmap, so every process
// sees the same membership state. Bit positions come from
// Kirsch-Mitzenmacher double hashing of two xxhash digests.
type RedisBloom struct {
	rdb  goredis.UniversalClient
	name string

	mu sync.RWMutex
	m  uint64 // bit count
	k  uint64 // hash count
}

var _ mc.Filter = (*RedisBloom)(nil)

// NewRedisBloom creates an uninitialized filter stored under name. The
// client is shared, not owned. Call Init before use.
func NewRedisBloom(client goredis.UniversalClient, name string) (*RedisBloom, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if name == "" {
		name = "multicache:filter"
	}
	return &RedisBloom{rdb: client, name: name}, nil
}

// Init sizes the filter for expectedInsertions at fpRate. Idempotent: the
// first process to run it persists the derived (bit count, hash count)
// pair; later processes adopt the persisted sizing so every writer hashes
// into the same bit positions.
func (f *RedisBloom) Init(ctx context.Context, expectedInsertions int64, fpRate float64) error {
	if expectedInsertions <= 0 || fpRate <= 0 || fpRate >= 1 {
		return fmt.Errorf("filter: invalid sizing n=%d p=%v", expectedInsertions, fpRate)
	}
	m, k := optimalMK(expectedInsertions, fpRate)

	cfgKey := f.name + ":config"
	set, err := f.rdb.SetNX(ctx, cfgKey, fmt.Sprintf("%d:%d", m, k), 0).Result()
	if err != nil {
		return err
	}
	if !set {
		cfg, err := f.rdb.Get(ctx, cfgKey).Result()
		if err != nil {
			return err
		}
		m, k, err = parseConfig(cfg)
		if err != nil {
			return fmt.Errorf("filter: corrupt config %q: %w", cfg, err)
		}
	}

	f.mu.Lock()
	f.m, f.k = m, k
	f.mu.Unlock()
	return nil
}

func (f *RedisBloom) Add(ctx context.Context, key string) error {
	m, k, err := f.sizing()
	if err != nil {
		return err
	}
	_, err = f.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, off := range offsets(key, m, k) {
			p.SetBit(ctx, f.name, int64(off), 1)
		}
		return nil
	})
	return err
}

func (f *RedisBloom) Contains(ctx context.Context, key string) (bool, error) {
	m, k, err := f.sizing()
	if err != nil {
		return false, err
	}
	bits := make([]*goredis.IntCmd, 0, k)
	_, err = f.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, off := range offsets(key, m, k) {
			bits = append(bits, p.GetBit(ctx, f.name, int64(off)))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, b := range bits {
		if b.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (f *RedisBloom) sizing() (m, k uint64, err error) {
	f.mu.RLock()
	m, k = f.m, f.k
	f.mu.RUnlock()
	if m == 0 || k == 0 {
		return 0, 0, ErrNotInitialized
	}
	return m, k, nil
}

// optimalMK derives the bit count and hash count for n insertions at false
// positive rate p (standard bloom filter sizing).
func optimalMK(n int64, p float64) (m, k uint64) {
	mf := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	m = uint64(mf)
	if m == 0 {
		m = 1
	}
	k = uint64(math.Round(mf / float64(n) * math.Ln2))
	if k == 0 {
		k = 1
	}
	return m, k
}

func parseConfig(cfg string) (m, k uint64, err error) {
	parts := strings.SplitN(cfg, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want m:k")
	}
	m, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	k, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if m == 0 || k == 0 {
		return 0, 0, fmt.Errorf("zero sizing")
	}
	return m, k, nil
}

// offsets returns the k bit positions for key: g_i = h1 + i*h2 mod m over
// two independent xxhash digests.
func offsets(key string, m, k uint64) []uint64 {
	h1 := xxhash.Sum64String(key)
	h2 := xxhash.Sum64(append([]byte(key), 0xff))
	out := make([]uint64, k)
	for i := uint64(0); i < k; i++ {
		out[i] = (h1 + i*h2) % m
	}
	return out
}
