package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Test server
// -----------------------------------------------------------------------------

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamServer accepts websocket handshakes and hands each connection to the
// test for scripting.
type streamServer struct {
	*httptest.Server
	mu    sync.Mutex
	conns []*websocket.Conn
	seen  []string
}

func newStreamServer(t *testing.T) *streamServer {
	s := &streamServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.seen = append(s.seen, r.URL.Query().Get("symbols"))
		s.mu.Unlock()
	}))
	return s
}

func (s *streamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *streamServer) handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *streamServer) conn(i int) *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.conns) {
		return nil
	}
	return s.conns[i]
}

func (s *streamServer) lastSymbols() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) == 0 {
		return ""
	}
	return s.seen[len(s.seen)-1]
}

// -----------------------------------------------------------------------------

func newTestConnection(url string, onBatch func([]models.MTickEntry)) *Connection {
	return NewConnection(Options{
		URL:         url,
		BaseDelay:   10 * time.Millisecond,
		CapDelay:    50 * time.Millisecond,
		MaxAttempts: 3,
	}, onBatch, logger.NewLogger(nil, "test"))
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// -----------------------------------------------------------------------------

func TestReconnectDelay(t *testing.T) {
	base := 1 * time.Second
	cap := 30 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := ReconnectDelay(tc.attempt, base, cap); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

// -----------------------------------------------------------------------------

func TestOpenDeliversBatches(t *testing.T) {
	srv := newStreamServer(t)
	defer srv.Close()

	batches := make(chan []models.MTickEntry, 4)
	c := newTestConnection(srv.wsURL(), func(b []models.MTickEntry) { batches <- b })
	defer c.Close()

	c.Open([]string{"MSFT", "AAPL"})

	waitFor(t, "open state", func() bool { return c.State() == StateOpen })
	if got := srv.lastSymbols(); got != "AAPL,MSFT" {
		t.Errorf("expected sorted symbols in handshake, got %q", got)
	}

	q := models.MQuote{Current: 187}
	msg := models.MTickMessage{Type: models.TickMessageType, Data: []models.MTickEntry{{Symbol: "AAPL", Quote: &q}}}
	if err := srv.conn(0).WriteJSON(msg); err != nil {
		t.Fatalf("server write failed: %v", err)
	}

	select {
	case b := <-batches:
		if len(b) != 1 || b[0].Symbol != "AAPL" {
			t.Errorf("unexpected batch %v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch never delivered")
	}
}

// -----------------------------------------------------------------------------

func TestMalformedMessagesAreDropped(t *testing.T) {
	srv := newStreamServer(t)
	defer srv.Close()

	batches := make(chan []models.MTickEntry, 4)
	c := newTestConnection(srv.wsURL(), func(b []models.MTickEntry) { batches <- b })
	defer c.Close()

	c.Open([]string{"AAPL"})
	waitFor(t, "open state", func() bool { return c.State() == StateOpen })

	server := srv.conn(0)
	server.WriteMessage(websocket.TextMessage, []byte("{not json"))
	server.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))

	q := models.MQuote{Current: 1}
	server.WriteJSON(models.MTickMessage{Type: models.TickMessageType, Data: []models.MTickEntry{{Symbol: "AAPL", Quote: &q}}})

	select {
	case b := <-batches:
		if b[0].Symbol != "AAPL" {
			t.Errorf("unexpected batch %v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid batch after malformed frames never delivered")
	}

	if c.State() != StateOpen {
		t.Errorf("malformed frames must not change state, got %v", c.State())
	}
}

// -----------------------------------------------------------------------------

func TestReconnectAfterTransportError(t *testing.T) {
	srv := newStreamServer(t)
	defer srv.Close()

	c := newTestConnection(srv.wsURL(), nil)
	defer c.Close()

	c.Open([]string{"AAPL"})
	waitFor(t, "first connection", func() bool { return srv.handshakes() == 1 })

	// Kill the socket server-side; the client must dial again on its own
	srv.conn(0).Close()

	waitFor(t, "reconnect handshake", func() bool { return srv.handshakes() >= 2 })
	waitFor(t, "open after reconnect", func() bool { return c.State() == StateOpen })

	if got := c.Status().ReconnectAttempts; got != 0 {
		t.Errorf("attempts must reset after successful reconnect, got %d", got)
	}
}

// -----------------------------------------------------------------------------

func TestFailedAfterMaxAttempts(t *testing.T) {
	// A server that is immediately gone
	srv := newStreamServer(t)
	url := srv.wsURL()
	srv.Close()

	c := newTestConnection(url, nil)
	defer c.Close()

	c.Open([]string{"AAPL"})

	waitFor(t, "failed state", func() bool { return c.State() == StateFailed })

	st := c.Status()
	if st.ReconnectAttempts != 3 {
		t.Errorf("expected 3 attempts before giving up, got %d", st.ReconnectAttempts)
	}
	if st.LastError == "" {
		t.Error("expected last error recorded")
	}
}

// -----------------------------------------------------------------------------

func TestFailedConnectionReportsNoSymbols(t *testing.T) {
	srv := newStreamServer(t)
	url := srv.wsURL()
	srv.Close()

	c := newTestConnection(url, nil)
	defer c.Close()

	c.Open([]string{"AAPL"})
	waitFor(t, "failed state", func() bool { return c.State() == StateFailed })

	// An unchanged interest set must still look like a difference to the
	// subscription sync, so a fresh subscribe restarts the connection
	if got := c.Symbols(); len(got) != 0 {
		t.Errorf("failed connection must report no symbols, got %v", got)
	}
}

// -----------------------------------------------------------------------------

func TestCloseCancelsPendingReconnect(t *testing.T) {
	srv := newStreamServer(t)
	url := srv.wsURL()
	srv.Close()

	c := newTestConnection(url, nil)
	c.Open([]string{"AAPL"})

	waitFor(t, "reconnecting state", func() bool {
		s := c.State()
		return s == StateReconnecting || s == StateFailed
	})

	c.Close()
	time.Sleep(100 * time.Millisecond)

	if c.State() != StateClosed {
		t.Errorf("expected closed after Close, got %v", c.State())
	}
}

// -----------------------------------------------------------------------------

func TestRetryUsesCurrentSymbolSet(t *testing.T) {
	srv := newStreamServer(t)
	defer srv.Close()

	c := newTestConnection(srv.wsURL(), nil)
	defer c.Close()

	// While the retry is pending, interest moves to a different set
	c.SetSymbolsProvider(func() []string { return []string{"TSLA"} })

	c.Open([]string{"AAPL"})
	waitFor(t, "first connection", func() bool { return srv.handshakes() == 1 })
	srv.conn(0).Close()

	waitFor(t, "reconnect handshake", func() bool { return srv.handshakes() >= 2 })

	if got := srv.lastSymbols(); got != "TSLA" {
		t.Errorf("reconnect must dial with the current set, got %q", got)
	}
}

// -----------------------------------------------------------------------------

func TestOpenWithEmptySetCloses(t *testing.T) {
	srv := newStreamServer(t)
	defer srv.Close()

	c := newTestConnection(srv.wsURL(), nil)
	c.Open([]string{"AAPL"})
	waitFor(t, "open state", func() bool { return c.State() == StateOpen })

	c.Open(nil)

	if c.State() != StateClosed {
		t.Errorf("expected closed for empty set, got %v", c.State())
	}
	if len(c.Symbols()) != 0 {
		t.Errorf("expected empty symbol set, got %v", c.Symbols())
	}
}
