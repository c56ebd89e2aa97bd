package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTier(t *testing.T, cfg AccessStoreConfig) *Tier[string] {
	t.Helper()
	tier := NewTier[string](NewAccessStore[string](cfg))
	t.Cleanup(func() { _ = tier.Close() })
	return tier
}

func TestGetMissThenPutHit(t *testing.T) {
	tier := newTestTier(t, AccessStoreConfig{})

	if _, ok := tier.Get("k"); ok {
		t.Fatalf("hit on empty tier")
	}
	tier.Put("k", "v")
	if v, ok := tier.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	s := tier.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
}

// Reads renew the expiry: an entry stays alive while it keeps being
// accessed and dies only after going untouched for the TTL.
func TestExpireAfterAccessRenewal(t *testing.T) {
	tier := newTestTier(t, AccessStoreConfig{TTL: 200 * time.Millisecond, SweepInterval: -1})

	tier.Put("k", "v")
	for i := 0; i < 5; i++ {
		time.Sleep(60 * time.Millisecond) // well inside the TTL
		if _, ok := tier.Get("k"); !ok {
			t.Fatalf("entry expired despite being accessed (iteration %d)", i)
		}
	}

	time.Sleep(400 * time.Millisecond) // past the TTL without access
	if _, ok := tier.Get("k"); ok {
		t.Fatalf("entry survived untouched past its TTL")
	}
	if s := tier.Stats(); s.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", s.Evictions)
	}
}

func TestMaxSizeEvictsLeastRecentlyAccessed(t *testing.T) {
	tier := newTestTier(t, AccessStoreConfig{MaxSize: 2})

	tier.Put("a", "1")
	tier.Put("b", "2")
	tier.Get("a") // a is now the most recently used
	tier.Put("c", "3")

	if _, ok := tier.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := tier.Get("a"); !ok {
		t.Fatalf("recently accessed a was evicted")
	}
	if _, ok := tier.Get("c"); !ok {
		t.Fatalf("newest entry c missing")
	}
	if s := tier.Stats(); s.Evictions != 1 || s.EvictionWeight != 1 {
		t.Fatalf("evictions=%d weight=%d, want 1/1", s.Evictions, s.EvictionWeight)
	}
}

func TestGetOrLoadSingleFlight(t *testing.T) {
	ctx := context.Background()
	tier := newTestTier(t, AccessStoreConfig{})

	var loads atomic.Int32
	load := func(context.Context) (string, bool, error) {
		n := loads.Add(1)
		time.Sleep(50 * time.Millisecond)
		return fmt.Sprintf("v%d", n), true, nil
	}

	const callers = 10
	results := make([]string, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			v, ok, err := tier.GetOrLoad(ctx, "k", load)
			if err != nil || !ok {
				t.Errorf("caller %d: ok=%v err=%v", i, ok, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Fatalf("load ran %d times, want 1", n)
	}
	for i := range results {
		if results[i] != results[0] {
			t.Fatalf("caller %d got %q, caller 0 got %q", i, results[i], results[0])
		}
	}
	if s := tier.Stats(); s.LoadSuccesses != 1 {
		t.Fatalf("loadSuccesses = %d, want 1", s.LoadSuccesses)
	}
}

func TestGetOrLoadEmptyNotCached(t *testing.T) {
	ctx := context.Background()
	tier := newTestTier(t, AccessStoreConfig{})

	v, ok, err := tier.GetOrLoad(ctx, "k", func(context.Context) (string, bool, error) {
		return "", false, nil
	})
	if err != nil || ok || v != "" {
		t.Fatalf("GetOrLoad empty: v=%q ok=%v err=%v", v, ok, err)
	}
	if _, ok := tier.Get("k"); ok {
		t.Fatalf("empty result was cached")
	}
	if s := tier.Stats(); s.LoadFailures != 1 {
		t.Fatalf("loadFailures = %d, want 1", s.LoadFailures)
	}
}

func TestGetOrLoadErrorPropagates(t *testing.T) {
	ctx := context.Background()
	tier := newTestTier(t, AccessStoreConfig{})

	wantErr := errors.New("origin down")
	_, ok, err := tier.GetOrLoad(ctx, "k", func(context.Context) (string, bool, error) {
		return "", false, wantErr
	})
	if ok || !errors.Is(err, wantErr) {
		t.Fatalf("GetOrLoad: ok=%v err=%v", ok, err)
	}
	if s := tier.Stats(); s.LoadFailures != 1 || s.LoadSuccesses != 0 {
		t.Fatalf("loads=%d/%d, want 0 success 1 failure", s.LoadSuccesses, s.LoadFailures)
	}
}

func TestGetAllPartial(t *testing.T) {
	tier := newTestTier(t, AccessStoreConfig{})

	tier.PutAll(map[string]string{"a": "1", "b": "2"})
	got := tier.GetAll([]string{"a", "b", "c"})
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("GetAll = %v", got)
	}

	s := tier.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 2/1", s.Hits, s.Misses)
	}
}

func TestInvalidateAllVariants(t *testing.T) {
	tier := newTestTier(t, AccessStoreConfig{})

	tier.PutAll(map[string]string{"a": "1", "b": "2", "c": "3"})
	tier.InvalidateAll("a", "b")
	if _, ok := tier.Get("a"); ok {
		t.Fatalf("a survived InvalidateAll")
	}
	if _, ok := tier.Get("c"); !ok {
		t.Fatalf("c should have survived")
	}

	// no-arg form clears everything
	tier.InvalidateAll()
	if _, ok := tier.Get("c"); ok {
		t.Fatalf("clear left c behind")
	}
}

func TestLoadStatsIdentity(t *testing.T) {
	ctx := context.Background()
	tier := newTestTier(t, AccessStoreConfig{})

	_, _, _ = tier.GetOrLoad(ctx, "a", func(context.Context) (string, bool, error) { return "1", true, nil })
	_, _, _ = tier.GetOrLoad(ctx, "b", func(context.Context) (string, bool, error) { return "", false, nil })
	_, _, _ = tier.GetOrLoad(ctx, "c", func(context.Context) (string, bool, error) { return "", false, errors.New("x") })

	s := tier.Stats()
	if s.Hits+s.Misses != s.Requests() {
		t.Fatalf("hits+misses != requests: %+v", s)
	}
	if s.LoadSuccesses+s.LoadFailures != 3 {
		t.Fatalf("load identity broken: %+v", s)
	}
	if s.TotalLoadTime < 0 {
		t.Fatalf("negative load time: %d", s.TotalLoadTime)
	}
}
