package types

// Identity is the local long-term keypair. It is created once by `init`,
// persisted encrypted under a password-derived wrapping key, and loaded at
// client start. The private scalar must never leave the identity store's
// scope except to derive per-peer session keys.
type Identity struct {
	Priv     PrivateKey
	Pub      PublicKey
	Nickname string
}
