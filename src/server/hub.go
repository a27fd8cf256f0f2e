package server

import (
	"net/http"
	"sync/atomic"

	"stock-tracker/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub is the main Hub loop: it owns the client set and fans tick batches
// out to every connected websocket client.
func (s *APIServer) runHub() {
	for {
		select {
		case <-s.done:
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			atomic.StoreInt64(&s.clientCount, int64(len(s.clients)))
			// Send the current quote snapshot on connect
			snapshot := s.dataEngine.Quotes.Snapshot()
			if len(snapshot) > 0 {
				batch := make([]models.MTickEntry, 0, len(snapshot))
				for sym := range snapshot {
					q := snapshot[sym]
					batch = append(batch, models.MTickEntry{Symbol: sym, Quote: &q})
				}
				client.send <- models.MTickMessage{Type: models.TickMessageType, Data: batch}
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				atomic.StoreInt64(&s.clientCount, int64(len(s.clients)))
			}

		case batch := <-s.broadcast:
			msg := models.MTickMessage{Type: models.TickMessageType, Data: batch}
			for client := range s.clients {
				select {
				case client.send <- msg:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			atomic.StoreInt64(&s.clientCount, int64(len(s.clients)))
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}
