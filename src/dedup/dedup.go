package dedup

import (
	"sync"

	"stock-tracker/src/logger"
)

// -----------------------------------------------------------------------------
// Deduplicator collapses concurrent requests for the same cache key into a
// single in-flight call. Callers arriving while a call is pending block until
// it settles and receive the same outcome.
// -----------------------------------------------------------------------------

type call struct {
	done chan struct{}
	val  interface{}
	err  error
}

type Deduplicator struct {
	mu      sync.Mutex
	pending map[string]*call
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewDeduplicator(log *logger.Logger) *Deduplicator {
	return &Deduplicator{
		pending: make(map[string]*call),
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Run invokes factory for key unless a call for the same key is already in
// flight, in which case the pending result is shared. The registration is
// removed before waiters are released, success or failure, so a failed key
// can be retried immediately.
func (d *Deduplicator) Run(key string, factory func() (interface{}, error)) (interface{}, error) {
	d.mu.Lock()
	if c, ok := d.pending[key]; ok {
		d.mu.Unlock()
		d.Logger.Debug("Joining in-flight request for key %s", key)
		<-c.done
		return c.val, c.err
	}

	c := &call{done: make(chan struct{})}
	d.pending[key] = c
	d.mu.Unlock()

	c.val, c.err = factory()

	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
	close(c.done)

	return c.val, c.err
}

// -----------------------------------------------------------------------------

// InFlight returns the number of pending keys.
func (d *Deduplicator) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
