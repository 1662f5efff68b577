package relay

import (
	"crypto/rand"
	"encoding/hex"

	"wsp/internal/domain"
)

// newSessionID returns a fresh, cryptographically random session-id. It is
// never derived from or correlated with a public key.
func newSessionID() domain.SessionID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return domain.SessionID(hex.EncodeToString(b[:]))
}
