// Package remote implements the shared key-value tier on Redis.
package remote

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	mc "github.com/unkn0wn-root/multicache"
)

var ErrNilClient = errors.New("remote: nil redis client")

// Redis is the remote tier over a go-redis UniversalClient (single node,
// sentinel or cluster).
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ mc.Remote = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this tier exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

// MultiGet returns one slot per key, in request order. Absent keys yield a
// nil slot; present-but-empty values yield a non-nil empty slice.
func (r *Redis) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			// absent; keep slot nil
		case string:
			b := []byte(vv)
			if b == nil {
				b = []byte{}
			}
			out[i] = b
		case []byte:
			out[i] = vv
		}
	}
	return out, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // non-positive => no expiry
	}
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

// MultiSet stores all values with one MSET, then applies ttl per key in the
// same pipeline. Redis has no atomic bulk-TTL form, so expiries land a hair
// after the values; readers in that gap see unexpired entries, never
// missing ones.
func (r *Redis) MultiSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	_, err := r.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		pairs := make([]any, 0, len(values)*2)
		for k, v := range values {
			pairs = append(pairs, k, v)
		}
		p.MSet(ctx, pairs...)
		if ttl > 0 {
			for k := range values {
				p.Expire(ctx, k, ttl)
			}
		}
		return nil
	})
	return err
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

// Del reports whether a value was actually removed.
func (r *Redis) Del(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying redis client only when this tier owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
