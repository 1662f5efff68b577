package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"wsp/internal/domain"
	"wsp/internal/util/memzero"
)

// GenerateX25519 returns a fresh Curve25519 key pair. The private key is
// clamped per RFC 7748.
func GenerateX25519() (priv domain.PrivateKey, pub domain.PublicKey, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pb)
	return
}

// DH computes the raw X25519 shared point aB for local private a and
// remote public B. The result is not yet a session key; it must be passed
// through DeriveSessionKey before use.
func DH(priv domain.PrivateKey, pub domain.PublicKey) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	memzero.Zero(secret)
	return out, nil
}

func clamp(k *domain.PrivateKey) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
