package local

import (
	"container/list"
	"sync"
	"time"
)

// StoreStats are eviction counters owned by the backing store. Weight is
// the accumulated cost of evicted entries; for the default store every
// entry costs 1, so weight equals count.
type StoreStats struct {
	Evictions      int64
	EvictionWeight int64
}

// Store is the bounded in-process backing store behind a Tier. It holds
// decoded values, not bytes. Implementations must be safe for concurrent
// use. Get renews access-based expiry where the store supports it.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Clear()
	Stats() StoreStats
	Close() error
}

// AccessStore is the default Store: an LRU-bounded map whose entries expire
// a fixed duration after their last access. Reads renew the expiry (sliding
// TTL), so an entry stays alive as long as it keeps getting used. A
// background sweeper drops entries that expired without being read again.
type AccessStore[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently accessed

	ttl     time.Duration
	maxSize int64 // <= 0 => unbounded

	evictions int64

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

type accessEntry[V any] struct {
	key      string
	value    V
	expireAt time.Time // zero => never expires
}

// AccessStoreConfig sizes an AccessStore. Zero values fall back to
// sensible defaults except MaxSize, where 0 keeps the store unbounded.
type AccessStoreConfig struct {
	InitialCapacity int
	MaxSize         int64         // entry bound; <= 0 => unbounded
	TTL             time.Duration // expire after access; <= 0 => no expiry
	SweepInterval   time.Duration // 0 => TTL (min 1s); < 0 => no sweeper
}

func NewAccessStore[V any](cfg AccessStoreConfig) *AccessStore[V] {
	capHint := cfg.InitialCapacity
	if capHint <= 0 {
		capHint = 16
	}
	s := &AccessStore[V]{
		entries: make(map[string]*list.Element, capHint),
		order:   list.New(),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
	}

	sweep := cfg.SweepInterval
	if sweep == 0 && cfg.TTL > 0 {
		sweep = cfg.TTL
		if sweep < time.Second {
			sweep = time.Second
		}
	}
	if sweep > 0 && cfg.TTL > 0 {
		s.ticker = time.NewTicker(sweep)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

var _ Store[any] = (*AccessStore[any])(nil)

func (s *AccessStore[V]) Get(key string) (V, bool) {
	var zero V
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*accessEntry[V])
	if !e.expireAt.IsZero() && now.After(e.expireAt) {
		s.removeLocked(el, e.key)
		s.evictions++
		return zero, false
	}
	if s.ttl > 0 {
		e.expireAt = now.Add(s.ttl)
	}
	s.order.MoveToFront(el)
	return e.value, true
}

func (s *AccessStore[V]) Set(key string, value V) {
	now := time.Now()
	var expireAt time.Time
	if s.ttl > 0 {
		expireAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		e := el.Value.(*accessEntry[V])
		e.value = value
		e.expireAt = expireAt
		s.order.MoveToFront(el)
		return
	}
	el := s.order.PushFront(&accessEntry[V]{key: key, value: value, expireAt: expireAt})
	s.entries[key] = el

	for s.maxSize > 0 && int64(len(s.entries)) > s.maxSize {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest, oldest.Value.(*accessEntry[V]).key)
		s.evictions++
	}
}

func (s *AccessStore[V]) Delete(key string) {
	s.mu.Lock()
	if el, ok := s.entries[key]; ok {
		s.removeLocked(el, key)
	}
	s.mu.Unlock()
}

func (s *AccessStore[V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.mu.Unlock()
}

func (s *AccessStore[V]) Len() int {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	return n
}

func (s *AccessStore[V]) Stats() StoreStats {
	s.mu.Lock()
	n := s.evictions
	s.mu.Unlock()
	return StoreStats{Evictions: n, EvictionWeight: n}
}

func (s *AccessStore[V]) Close() error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}

func (s *AccessStore[V]) removeLocked(el *list.Element, key string) {
	s.order.Remove(el)
	delete(s.entries, key)
}

func (s *AccessStore[V]) sweep() {
	now := time.Now()
	s.mu.Lock()
	for key, el := range s.entries {
		e := el.Value.(*accessEntry[V])
		if !e.expireAt.IsZero() && now.After(e.expireAt) {
			s.removeLocked(el, key)
			s.evictions++
		}
	}
	s.mu.Unlock()
}
