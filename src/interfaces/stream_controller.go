package interfaces

// -----------------------------------------------------------------------------
// IStreamController is the narrow control surface the subscription manager
// needs over the shared streaming connection.
// -----------------------------------------------------------------------------

type IStreamController interface {

	// Open (re)opens the connection for the given symbol set, tearing down
	// any prior connection first. An empty set is equivalent to Close.
	Open(symbols []string)

	// -----------------------------------------------------------------------------

	// Close tears the connection down and cancels any pending reconnect.
	Close()

	// -----------------------------------------------------------------------------

	// Symbols returns the sorted symbol set the connection was last opened
	// with, or nil when closed.
	Symbols() []string
}
