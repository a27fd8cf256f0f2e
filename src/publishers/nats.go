package publishers

import (
	"encoding/json"
	"fmt"
	"sync"

	"stock-tracker/src/broadcast"
	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"

	"github.com/nats-io/nats.go"
)

// -----------------------------------------------------------------------------
// NATSPublisher relays accepted tick batches onto a NATS subject per symbol,
// so downstream services can consume live quotes without touching the REST
// surface.
// -----------------------------------------------------------------------------

type NATSPublisher struct {
	mu            sync.Mutex
	Config        *models.MNATSConfig
	Logger        *logger.Logger
	conn          *nats.Conn
	subjectPrefix string
	unlisten      func()
}

// -----------------------------------------------------------------------------

func NewNATSPublisher(cfg *models.MNATSConfig, log *logger.Logger) *NATSPublisher {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "quotes"
	}
	return &NATSPublisher{
		Config:        cfg,
		Logger:        log,
		subjectPrefix: prefix,
	}
}

var _ interfaces.IPublisher = (*NATSPublisher)(nil)

// -----------------------------------------------------------------------------

func (p *NATSPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && p.conn.IsConnected() {
		return nil
	}

	conn, err := nats.Connect(p.Config.URL,
		nats.Name("stock-tracker"),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.Logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			p.Logger.Warning("NATS disconnected: %v", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.Config.URL, err)
	}

	p.conn = conn
	p.Logger.Info("Connected to NATS at %s", p.Config.URL)
	return nil
}

// -----------------------------------------------------------------------------

func (p *NATSPublisher) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unlisten != nil {
		p.unlisten()
		p.unlisten = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return nil
}

// -----------------------------------------------------------------------------

func (p *NATSPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && p.conn.IsConnected()
}

// -----------------------------------------------------------------------------

// Attach registers the publisher on a broadcaster so every accepted tick
// batch is relayed.
func (p *NATSPublisher) Attach(b *broadcast.Broadcaster) {
	p.mu.Lock()
	p.unlisten = b.Register(p.OnTickBatch)
	p.mu.Unlock()
}

// -----------------------------------------------------------------------------

// OnTickBatch publishes every usable entry to <prefix>.<symbol>.
func (p *NATSPublisher) OnTickBatch(batch []models.MTickEntry) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		return
	}

	for _, e := range batch {
		if e.Quote == nil {
			continue
		}
		payload, err := json.Marshal(e.Quote)
		if err != nil {
			p.Logger.Error("Failed to serialize quote for %s: %v", e.Symbol, err)
			continue
		}
		subject := fmt.Sprintf("%s.%s", p.subjectPrefix, e.Symbol)
		if err := conn.Publish(subject, payload); err != nil {
			p.Logger.Error("Failed to publish %s: %v", subject, err)
		}
	}
}
