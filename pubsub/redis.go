// Package pubsub implements the invalidation channel on Redis pub/sub.
// Delivery is at-most-once and best-effort: a subscriber that is down or a
// dropped connection loses messages, and nobody retries. The local-tier
// access TTL bounds the staleness a lost eviction can cause.
package pubsub

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	mc "github.com/unkn0wn-root/multicache"
)

var ErrNilClient = errors.New("pubsub: nil redis client")

type Redis struct {
	rdb goredis.UniversalClient
	log mc.Logger
}

var _ mc.Bus = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient
	Logger mc.Logger // nil => no logging
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	log := cfg.Logger
	if log == nil {
		log = mc.NopLogger{}
	}
	return &Redis{rdb: cfg.Client, log: log}, nil
}

func (b *Redis) Publish(ctx context.Context, topic, key string) error {
	return b.rdb.Publish(ctx, topic, key).Err()
}

// Subscribe consumes topic on its own goroutine and hands each payload to
// handler. The returned cancel closes the subscription and waits for the
// goroutine to drain.
func (b *Redis) Subscribe(ctx context.Context, topic string, handler func(key string)) (func() error, error) {
	sub := b.rdb.Subscribe(ctx, topic)
	// force the SUBSCRIBE round-trip so a dead broker fails here, not
	// silently in the background
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range sub.Channel() {
			handler(msg.Payload)
		}
		b.log.Debug("subscription channel closed", mc.Fields{"topic": topic})
	}()

	var once sync.Once
	cancel := func() error {
		var err error
		once.Do(func() {
			err = sub.Close()
			wg.Wait()
		})
		return err
	}
	return cancel, nil
}
