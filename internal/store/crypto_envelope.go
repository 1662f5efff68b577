package store

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"lukechampine.com/blake3"

	"wsp/internal/domain"
	"wsp/internal/util/memzero"
)

// Identity file format per spec.md §6:
//
//	magic(4) || version(1) || salt(16) || nonce(12) || ciphertext || tag(16) || public_key(32)
//
// The wrapping key is BLAKE3(password || salt); AEAD is ChaCha20-Poly1305
// with an all-zero-safe construction since the salt-bound key is fresh per
// file (there is exactly one ciphertext ever sealed under it).
var identityMagic = [4]byte{'w', 's', 'p', '1'}

const identityFormatVersion = 1

const (
	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSize // 12
	tagSize   = chacha20poly1305.Overhead  // 16
)

// wrapKey derives the identity-file wrapping key from a passphrase and salt.
func wrapKey(passphrase string, salt []byte) [32]byte {
	h := blake3.New(32, nil)
	h.Write([]byte(passphrase))
	h.Write(salt)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// encodeIdentityFile seals priv under a passphrase-derived key and packs the
// spec.md §6 on-disk layout.
func encodeIdentityFile(passphrase string, priv domain.PrivateKey, pub domain.PublicKey) ([]byte, error) {
	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("store: generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("store: generate nonce: %w", err)
	}

	key := wrapKey(passphrase, salt[:])
	aead, err := chacha20poly1305.New(key[:])
	memzero.Zero(key[:])
	if err != nil {
		return nil, fmt.Errorf("store: init aead: %w", err)
	}
	sealed := aead.Seal(nil, nonce[:], priv.Slice(), nil) // ciphertext || tag

	buf := make([]byte, 0, 4+1+saltSize+nonceSize+len(sealed)+32)
	buf = append(buf, identityMagic[:]...)
	buf = append(buf, identityFormatVersion)
	buf = append(buf, salt[:]...)
	buf = append(buf, nonce[:]...)
	buf = append(buf, sealed...)
	buf = append(buf, pub.Slice()...)
	return buf, nil
}

// decodeIdentityFile reverses encodeIdentityFile, returning domain.ErrWrongPassphrase
// on AEAD failure so callers can distinguish it from corruption/format errors.
func decodeIdentityFile(passphrase string, data []byte) (domain.Identity, error) {
	const headerLen = 4 + 1 + saltSize + nonceSize
	minLen := headerLen + tagSize + 32
	if len(data) < minLen {
		return domain.Identity{}, fmt.Errorf("store: identity file truncated")
	}
	if [4]byte(data[0:4]) != identityMagic {
		return domain.Identity{}, fmt.Errorf("store: bad identity file magic")
	}
	version := data[4]
	if version != identityFormatVersion {
		return domain.Identity{}, fmt.Errorf("store: unsupported identity file version %d", version)
	}

	salt := data[5 : 5+saltSize]
	nonce := data[5+saltSize : headerLen]
	pub := data[len(data)-32:]
	sealed := data[headerLen : len(data)-32]

	key := wrapKey(passphrase, salt)
	aead, err := chacha20poly1305.New(key[:])
	memzero.Zero(key[:])
	if err != nil {
		return domain.Identity{}, fmt.Errorf("store: init aead: %w", err)
	}
	privBytes, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return domain.Identity{}, domain.ErrWrongPassphrase
	}

	var id domain.Identity
	copy(id.Priv[:], privBytes)
	copy(id.Pub[:], pub)
	return id, nil
}
