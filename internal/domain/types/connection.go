package types

import "time"

// Connection is a single relay socket lifetime. It is created on connect and
// dies on disconnect; its SessionID rotates on every reconnect.
type Connection struct {
	SessionID        SessionID
	KeepaliveDeadline time.Time
}
