package stream

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// State machine for the single shared server-push connection.
// -----------------------------------------------------------------------------

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------

// Options configures the connection endpoint and reconnection policy.
type Options struct {
	URL         string
	Token       string
	BaseDelay   time.Duration
	CapDelay    time.Duration
	MaxAttempts int
}

// -----------------------------------------------------------------------------

// ReconnectDelay computes the backoff before retry number attempt (0-based):
// min(base << attempt, cap). Non-decreasing in attempt and capped.
func ReconnectDelay(attempt int, base, cap time.Duration) time.Duration {
	delay := base << uint(attempt)
	// Overflow from large shifts shows up as a non-positive duration
	if delay <= 0 || delay > cap {
		return cap
	}
	return delay
}

// -----------------------------------------------------------------------------

// Connection owns the process-wide streaming socket. At most one live socket
// exists at a time: every open tears the prior one down first, and a
// generation counter keeps goroutines of a torn-down socket from touching
// the current one.
type Connection struct {
	mu         sync.Mutex
	opts       Options
	state      State
	conn       *websocket.Conn
	symbols    []string
	attempts   int
	gen        int
	retryTimer *time.Timer
	lastErr    error

	// onBatch receives every accepted tick batch.
	onBatch func(batch []models.MTickEntry)

	// symbolsFn, when set, supplies the desired symbol set at retry time so
	// that subscribe/unsubscribe calls made while waiting are honored.
	symbolsFn func() []string

	dialer *websocket.Dialer
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewConnection(opts Options, onBatch func(batch []models.MTickEntry), log *logger.Logger) *Connection {
	return &Connection{
		opts:    opts,
		state:   StateClosed,
		onBatch: onBatch,
		Logger:  log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// SetSymbolsProvider wires the callback consulted when a reconnect fires.
func (c *Connection) SetSymbolsProvider(fn func() []string) {
	c.mu.Lock()
	c.symbolsFn = fn
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Open (re)opens the connection for the given symbol set. Any prior socket
// and pending reconnect timer are torn down first; an empty set closes the
// connection instead.
func (c *Connection) Open(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts = 0
	c.lastErr = nil
	c.openLocked(symbols)
}

// -----------------------------------------------------------------------------

func (c *Connection) openLocked(symbols []string) {
	c.teardownLocked()

	if len(symbols) == 0 {
		c.symbols = nil
		c.setStateLocked(StateClosed)
		return
	}

	c.symbols = append([]string(nil), symbols...)
	sort.Strings(c.symbols)
	c.setStateLocked(StateConnecting)

	gen := c.gen
	go c.dial(append([]string(nil), c.symbols...), gen)
}

// -----------------------------------------------------------------------------

// dial performs the websocket handshake off the lock, then installs the
// socket unless the connection moved on to a newer generation meanwhile.
func (c *Connection) dial(symbols []string, gen int) {
	endpoint := c.streamURL(symbols)
	conn, _, err := c.dialer.Dial(endpoint, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.lastErr = err
		c.Logger.Error("Handshake failed for %d symbols: %v", len(symbols), err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.lastErr = nil
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	go c.readLoop(conn, gen)
}

// -----------------------------------------------------------------------------

func (c *Connection) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleTransportError(gen, err)
			return
		}
		c.handleMessage(message)
	}
}

// -----------------------------------------------------------------------------

// handleMessage parses one raw frame. Malformed or unrecognized messages are
// logged and dropped; they never affect connection state.
func (c *Connection) handleMessage(message []byte) {
	var msg models.MTickMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Logger.Warning("Dropping malformed stream message: %v", err)
		return
	}

	if msg.Type != models.TickMessageType || len(msg.Data) == 0 {
		return
	}

	if c.onBatch != nil {
		c.onBatch(msg.Data)
	}
}

// -----------------------------------------------------------------------------

// handleTransportError drives Connecting/Open -> Reconnecting on a transport
// failure of the current socket. Errors from superseded sockets are ignored.
func (c *Connection) handleTransportError(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state == StateClosed {
		return
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.lastErr = err
	c.Logger.Error("Stream transport error: %v", err)
	c.scheduleReconnectLocked()
}

// -----------------------------------------------------------------------------

func (c *Connection) scheduleReconnectLocked() {
	if c.attempts >= c.opts.MaxAttempts {
		c.Logger.Error("Giving up after %d reconnect attempts", c.attempts)
		c.setStateLocked(StateFailed)
		return
	}

	delay := ReconnectDelay(c.attempts, c.opts.BaseDelay, c.opts.CapDelay)
	c.attempts++
	c.setStateLocked(StateReconnecting)
	c.Logger.Info("Reconnect attempt %d/%d scheduled in %v", c.attempts, c.opts.MaxAttempts, delay)

	c.retryTimer = time.AfterFunc(delay, c.retryFire)
}

// -----------------------------------------------------------------------------

// retryFire runs when a scheduled reconnect elapses. It dials with the
// symbol set desired NOW, not the set at failure time.
func (c *Connection) retryFire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReconnecting {
		return
	}

	symbols := c.symbols
	if c.symbolsFn != nil {
		symbols = c.symbolsFn()
	}

	if len(symbols) == 0 {
		// Nobody is interested anymore
		c.teardownLocked()
		c.symbols = nil
		c.setStateLocked(StateClosed)
		return
	}

	c.teardownLocked()
	c.symbols = append([]string(nil), symbols...)
	sort.Strings(c.symbols)
	c.setStateLocked(StateConnecting)

	gen := c.gen
	go c.dial(append([]string(nil), c.symbols...), gen)
}

// -----------------------------------------------------------------------------

// Close tears the connection down and cancels any pending reconnect so a
// stale retry cannot resurrect a connection nobody needs.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.symbols = nil
	c.attempts = 0
	c.setStateLocked(StateClosed)
}

// -----------------------------------------------------------------------------

// teardownLocked invalidates the current generation, stops the retry timer
// and closes the socket. State is left for the caller to set.
func (c *Connection) teardownLocked() {
	c.gen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) setStateLocked(s State) {
	if c.state != s {
		c.Logger.Debug("Stream state %s -> %s", c.state, s)
		c.state = s
	}
}

// -----------------------------------------------------------------------------

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// -----------------------------------------------------------------------------

// Symbols returns the sorted symbol set the connection was last opened with.
// A Failed connection reports no symbols: retries stopped, so the next
// subscription sync must reopen even with an unchanged interest set.
func (c *Connection) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateFailed {
		return nil
	}
	return append([]string(nil), c.symbols...)
}

// -----------------------------------------------------------------------------

// Status returns an observable snapshot for the status API.
func (c *Connection) Status() models.MStreamStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.MStreamStatus{
		State:             c.state.String(),
		Symbols:           append([]string(nil), c.symbols...),
		ReconnectAttempts: c.attempts,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// -----------------------------------------------------------------------------

func (c *Connection) streamURL(symbols []string) string {
	v := url.Values{}
	v.Set("symbols", strings.Join(symbols, ","))
	if c.opts.Token != "" {
		v.Set("token", c.opts.Token)
	}
	return c.opts.URL + "?" + v.Encode()
}
