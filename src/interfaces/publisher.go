package interfaces

import "stock-tracker/src/models"

// -----------------------------------------------------------------------------

// IPublisher defines the interface for publishing tick data to an external
// message broker.
type IPublisher interface {
	// OnTickBatch publishes every usable entry of an accepted tick batch
	OnTickBatch(batch []models.MTickEntry)

	// Connect establishes connection to the message broker
	Connect() error

	// Disconnect closes the connection to the message broker
	Disconnect() error

	// IsConnected returns the current connection status
	IsConnected() bool
}
