package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"lukechampine.com/blake3"

	"wsp/internal/domain"
)

// historyKeyDomain separates the local history-at-rest key from every other
// BLAKE3 derivation in this package.
const historyKeyDomain = "wsp/v1/history-key"

// DeriveHistoryKey derives the key used to seal the local chat history log
// from the identity's private key alone: history readability must not
// depend on any peer's shared secret or session state.
func DeriveHistoryKey(priv domain.PrivateKey) [32]byte {
	h := blake3.New(32, nil)
	h.Write([]byte(historyKeyDomain))
	h.Write(priv.Slice())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SealRandom encrypts plaintext under key with a freshly generated random
// nonce, for at-rest records that have no counter-based nonce discipline of
// their own.
func SealRandom(key [32]byte, plaintext []byte) (nonce [12]byte, ciphertext []byte, err error) {
	if _, err = rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nonce, nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce[:], plaintext, nil)
	return nonce, ciphertext, nil
}

// OpenRandom decrypts a SealRandom ciphertext.
func OpenRandom(key [32]byte, nonce [12]byte, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	pt, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead open: %w", err)
	}
	return pt, nil
}
