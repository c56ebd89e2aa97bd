package multicache

import "context"

// Cleaner subscribes to the invalidation topic and evicts the matching
// local-tier entry on every broadcast. Each process runs one; the
// coordinator wires its own during Start.
type Cleaner struct {
	bus    Bus
	topic  string
	evict  func(key string)
	log    Logger
	cancel func() error
}

func NewCleaner(bus Bus, topic string, evict func(key string), log Logger) *Cleaner {
	if log == nil {
		log = NopLogger{}
	}
	return &Cleaner{bus: bus, topic: topic, evict: evict, log: log}
}

func (cl *Cleaner) Start(ctx context.Context) error {
	cancel, err := cl.bus.Subscribe(ctx, cl.topic, func(key string) {
		cl.evict(key)
		cl.log.Debug("evicted local entry on broadcast", Fields{"key": key})
	})
	if err != nil {
		return err
	}
	cl.cancel = cancel
	return nil
}

func (cl *Cleaner) Stop() error {
	if cl.cancel == nil {
		return nil
	}
	return cl.cancel()
}
