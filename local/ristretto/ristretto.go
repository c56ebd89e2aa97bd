// Package ristretto adapts dgraph-io/ristretto as a local-tier store:
// cost-based admission and eviction instead of a strict entry bound.
// Ristretto applies TTL at write time and does not renew it on access, so
// hot entries re-load once per TTL rather than staying resident.
package ristretto

import (
	"errors"
	"sync/atomic"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/multicache/local"
)

type Store[V any] struct {
	c   *rc.Cache
	ttl time.Duration

	evictions atomic.Int64
	weight    atomic.Int64
}

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration // per-entry, applied at write
}

func New[V any](cfg Config) (*Store[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	s := &Store[V]{ttl: cfg.TTL}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		OnEvict: func(item *rc.Item) {
			s.evictions.Add(1)
			s.weight.Add(item.Cost)
		},
	})
	if err != nil {
		return nil, err
	}
	s.c = c
	return s, nil
}

var _ local.Store[any] = (*Store[any])(nil)

func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	v, ok := s.c.Get(key)
	if !ok {
		return zero, false
	}
	tv, ok := v.(V)
	if !ok {
		// drop unexpected entry shape
		s.c.Del(key)
		return zero, false
	}
	return tv, true
}

func (s *Store[V]) Set(key string, value V) {
	s.c.SetWithTTL(key, value, 1, s.ttl)
}

func (s *Store[V]) Delete(key string) { s.c.Del(key) }

func (s *Store[V]) Clear() { s.c.Clear() }

func (s *Store[V]) Stats() local.StoreStats {
	return local.StoreStats{
		Evictions:      s.evictions.Load(),
		EvictionWeight: s.weight.Load(),
	}
}

func (s *Store[V]) Close() error {
	s.c.Wait()
	s.c.Close()
	return nil
}
