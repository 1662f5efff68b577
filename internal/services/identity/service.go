package identity

import (
	"unicode"

	"wsp/internal/crypto"
	"wsp/internal/domain"
)

// minPassphraseLength is the minimum number of characters required for a
// new identity's passphrase.
const minPassphraseLength = 12

// Service manages identity key creation and access using a backing store.
//
// The identity contains a single X25519 key pair used both for pairwise
// Diffie-Hellman and as the client's stable public identity; unlike the
// teacher's X3DH-era identity there is no separate signing key.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new identity, saves it encrypted with the
// passphrase, and returns the identity plus a short fingerprint of its
// public key.
func (s *Service) GenerateIdentity(passphrase string) (domain.Identity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, "", domain.ErrWeakPassphrase
	}

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{Priv: priv, Pub: pub}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, domain.Fingerprint(crypto.Fingerprint(id.Pub.Slice())), nil
}

// LoadIdentity decrypts and returns the local identity.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

// FingerprintIdentity returns a short fingerprint of the local public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(id.Pub.Slice())), nil
}

// isSecurePassphrase enforces a basic strength policy. spec.md has no
// passphrase-strength requirement of its own; this carries over the
// teacher's policy unchanged because a weak local passphrase undermines
// the whole identity-at-rest encryption regardless of what the wire
// protocol promises, and nothing about it is specific to X3DH-era
// identities. See DESIGN.md's identity service entry.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

var _ domain.IdentityService = (*Service)(nil)
