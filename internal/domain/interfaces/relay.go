package interfaces

import (
	"context"

	domaintypes "wsp/internal/domain/types"
)

// RelayTransport is how a client talks to the blind relay over a single
// logical (reconnecting) WebSocket connection. Implementations own their
// own reconnect/backoff loop; Send/Recv block only on the current
// connection's state.
type RelayTransport interface {
	// Connect establishes the socket and returns once Welcome has been
	// received, populating SessionID.
	Connect(ctx context.Context) error

	// SessionID returns the current session-id, valid until the next
	// reconnect.
	SessionID() domaintypes.SessionID

	// Send transmits one outer envelope as a single binary frame.
	Send(ctx context.Context, env domaintypes.Envelope) error

	// Recv blocks until the next envelope arrives or ctx is canceled.
	Recv(ctx context.Context) (domaintypes.Envelope, error)

	Close() error
}
