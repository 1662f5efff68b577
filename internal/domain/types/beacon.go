package types

// PresenceBeacon is broadcast cleartext (there is no shared secret yet, and
// it is addressed to no one in particular) so peers can learn a public key
// to session-id mapping the relay itself refuses to maintain. It carries no
// message content, only the routing metadata a directory needs.
type PresenceBeacon struct {
	PublicKey PublicKey `cbor:"1,keyasint"`
	Nickname  string    `cbor:"2,keyasint,omitempty"`
}
