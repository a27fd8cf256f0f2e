package subscription

import (
	"sort"
	"sync"
	"time"

	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/utils"
)

// -----------------------------------------------------------------------------
// Manager reference-counts symbol interest from independent consumers and
// keeps the shared stream connection in sync with the union of all interest.
// Connection churn is bounded by a debounce window: rapid subscribe and
// unsubscribe bursts collapse into a single reconnect.
// -----------------------------------------------------------------------------

type Manager struct {
	mu     sync.Mutex
	refs   map[string]int
	conn   interfaces.IStreamController
	window time.Duration
	timer  *time.Timer
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewManager(conn interfaces.IStreamController, window time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		refs:   make(map[string]int),
		conn:   conn,
		window: window,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Subscribe increments the reference count of every given symbol and
// schedules a connection sync.
func (m *Manager) Subscribe(symbols []string) {
	symbols = utils.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return
	}

	m.mu.Lock()
	for _, s := range symbols {
		m.refs[s]++
	}
	m.scheduleSyncLocked()
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Unsubscribe decrements the reference count of every given symbol, dropping
// a symbol from the interest set only when its count reaches zero.
func (m *Manager) Unsubscribe(symbols []string) {
	symbols = utils.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return
	}

	m.mu.Lock()
	for _, s := range symbols {
		n, ok := m.refs[s]
		if !ok {
			m.Logger.Warning("Unsubscribe for untracked symbol %s", s)
			continue
		}
		if n <= 1 {
			delete(m.refs, s)
		} else {
			m.refs[s] = n - 1
		}
	}
	m.scheduleSyncLocked()
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

// scheduleSyncLocked restarts the debounce timer; only the last mutation
// inside a burst actually triggers a sync.
func (m *Manager) scheduleSyncLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.window, m.sync)
}

// -----------------------------------------------------------------------------

// sync reconciles the connection with the current interest set. Opening with
// an unchanged set is skipped so a subscribe immediately undone by an
// unsubscribe causes no reconnect at all.
func (m *Manager) sync() {
	m.mu.Lock()
	desired := m.symbolsLocked()
	m.mu.Unlock()

	current := m.conn.Symbols()

	if len(desired) == 0 {
		if len(current) > 0 {
			m.Logger.Info("Interest set empty, closing stream")
			m.conn.Close()
		}
		return
	}

	if equalSets(desired, current) {
		return
	}

	m.Logger.Info("Syncing stream to %d symbols", len(desired))
	m.conn.Open(desired)
}

// -----------------------------------------------------------------------------

// Flush runs a pending sync immediately, cancelling the debounce timer.
func (m *Manager) Flush() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	m.sync()
}

// -----------------------------------------------------------------------------

// Symbols returns the sorted interest set.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbolsLocked()
}

func (m *Manager) symbolsLocked() []string {
	out := make([]string, 0, len(m.refs))
	for s := range m.refs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// Count returns the reference count of a symbol.
func (m *Manager) Count(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[utils.NormalizeSymbol(symbol)]
}

// -----------------------------------------------------------------------------

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
