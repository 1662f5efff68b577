package crypto

import (
	"lukechampine.com/blake3"

	"wsp/internal/domain"
	"wsp/internal/util/memzero"
)

// sessionKeyDomain is the fixed domain-separation string mixed into every
// session-key derivation.
const sessionKeyDomain = "wsp/v1/session-key"

// DeriveSessionKey turns a raw X25519 shared point into a 32-byte session
// key, mixing in the two public keys (sorted lexicographically) so the
// result is identical for both parties regardless of who computed it.
func DeriveSessionKey(sharedPoint [32]byte, a, b domain.PublicKey) [32]byte {
	first, second := a, b
	if b.Less(a) {
		first, second = b, a
	}

	h := blake3.New(32, nil)
	h.Write([]byte(sessionKeyDomain))
	h.Write(sharedPoint[:])
	h.Write(first.Slice())
	h.Write(second.Slice())

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SharedSecret computes the full pairwise shared secret for local identity
// (priv, pub) and remote public key `remote`: DH followed by
// DeriveSessionKey. This is the pure function of the two public keys that
// spec.md's Peer.SharedSecret invariant refers to.
func SharedSecret(priv domain.PrivateKey, pub, remote domain.PublicKey) ([32]byte, error) {
	point, err := DH(priv, remote)
	if err != nil {
		return [32]byte{}, err
	}
	key := DeriveSessionKey(point, pub, remote)
	memzero.Zero(point[:])
	return key, nil
}
