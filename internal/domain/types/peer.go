package types

import "time"

// Peer is created on first contact and lives for the client process
// lifetime; it is superseded (not merged) when a nickname's previously-seen
// public key changes, per the trust-on-first-use design.
//
// The Session manager exclusively owns Peer records and their nonce state;
// every other component resolves peers through it.
type Peer struct {
	PublicKey PublicKey

	SessionID SessionID // latest known session-id; empty until a fresh beacon arrives
	Nickname  string
	LastSeen  time.Time

	SharedSecret [32]byte // pure function of the two public keys; never transmitted

	SendCounter uint64 // next outbound nonce counter for this peer
	RecvCounter uint64 // next expected inbound nonce counter for this peer

	FirstSeenSafetyNumber SafetyNumber // recorded on first contact for TOFU comparison
}

// DirectionByte reports the AEAD direction byte used for messages sent from
// `self` to `p.PublicKey`: 0 if self sorts before the peer, 1 otherwise.
func (p Peer) DirectionByte(self PublicKey) byte {
	if self.Less(p.PublicKey) {
		return 0
	}
	return 1
}
