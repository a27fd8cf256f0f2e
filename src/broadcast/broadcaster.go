package broadcast

import (
	"sync"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"
)

// -----------------------------------------------------------------------------
// Broadcaster fans accepted tick batches out to independently registered
// listeners. Listeners are decoupled from the quote subsystem: a chart, an
// alert evaluator or an external publisher can all react to ticks without
// the stream knowing about them.
// -----------------------------------------------------------------------------

// Listener receives every published tick batch.
type Listener func(batch []models.MTickEntry)

type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewBroadcaster(log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		listeners: make(map[int]Listener),
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Register adds a listener and returns its unregister function. Calling the
// returned function more than once is harmless.
func (b *Broadcaster) Register(l Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------

// Publish delivers the batch to every registered listener. A panicking
// listener is logged and skipped; it stays registered and never blocks the
// remaining listeners.
func (b *Broadcaster) Publish(batch []models.MTickEntry) {
	if len(batch) == 0 {
		return
	}

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		b.invoke(l, batch)
	}
}

// -----------------------------------------------------------------------------

func (b *Broadcaster) invoke(l Listener, batch []models.MTickEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("Listener panicked during publish: %v", r)
		}
	}()
	l(batch)
}

// -----------------------------------------------------------------------------

// Count returns the number of registered listeners.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
