package crypto

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// MaxCounter is the largest nonce counter value that may still be used to
// seal a message; the next send after this must refuse per spec.md's
// nonce-exhaustion boundary behavior.
const MaxCounter = ^uint64(0)

// buildNonce constructs the 12-byte ChaCha20-Poly1305 nonce
// dir_byte || counter_u64_be || 3_zero_bytes.
func buildNonce(dir byte, counter uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	nonce[0] = dir
	binary.BigEndian.PutUint64(nonce[1:9], counter)
	return nonce
}

// Seal encrypts plaintext under key using the direction/counter nonce
// discipline, returning ciphertext||tag.
func Seal(key [32]byte, dir byte, counter uint64, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	nonce := buildNonce(dir, counter)
	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// Open decrypts ciphertext under key using the direction/counter nonce
// discipline. A tampered ciphertext or wrong counter never decrypts to
// anything; the error must be treated as an unconditional drop.
func Open(key [32]byte, dir byte, counter uint64, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	nonce := buildNonce(dir, counter)
	pt, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead open: %w", err)
	}
	return pt, nil
}
