// Package bigcache adapts allegro/bigcache as a local-tier store for
// workloads where GC pressure from many resident entries matters. BigCache
// holds bytes, so values pass through a codec on every local hit, and TTL
// is the global LifeWindow counted from write, not from last access.
package bigcache

import (
	"context"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	c "github.com/unkn0wn-root/multicache/codec"
	"github.com/unkn0wn-root/multicache/local"
)

type Store[V any] struct {
	c     *bc.BigCache
	codec c.Codec[V]

	// called for encode/decode failures; Store.Set cannot return one
	onError func(op string, err error)

	evictions atomic.Int64
	weight    atomic.Int64
}

type Config[V any] struct {
	Codec              c.Codec[V]
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited

	OnError func(op string, err error) // nil => failures are dropped silently
}

func New[V any](cfg Config[V]) (*Store[V], error) {
	s := &Store[V]{codec: cfg.Codec, onError: cfg.OnError}
	if s.onError == nil {
		s.onError = func(string, error) {}
	}

	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.OnRemoveWithReason = func(key string, entry []byte, reason bc.RemoveReason) {
		if reason == bc.Expired || reason == bc.NoSpace {
			s.evictions.Add(1)
			s.weight.Add(int64(len(entry)))
		}
	}

	cache, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	s.c = cache
	return s, nil
}

var _ local.Store[any] = (*Store[any])(nil)

func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	b, err := s.c.Get(key)
	if err != nil {
		return zero, false
	}
	v, err := s.codec.Decode(b)
	if err != nil {
		s.onError("decode", err)
		_ = s.c.Delete(key)
		return zero, false
	}
	return v, true
}

func (s *Store[V]) Set(key string, value V) {
	b, err := s.codec.Encode(value)
	if err != nil {
		s.onError("encode", err)
		return
	}
	if err := s.c.Set(key, b); err != nil {
		s.onError("set", err)
	}
}

func (s *Store[V]) Delete(key string) { _ = s.c.Delete(key) }

func (s *Store[V]) Clear() { _ = s.c.Reset() }

func (s *Store[V]) Stats() local.StoreStats {
	return local.StoreStats{
		Evictions:      s.evictions.Load(),
		EvictionWeight: s.weight.Load(),
	}
}

func (s *Store[V]) Close() error { return s.c.Close() }
