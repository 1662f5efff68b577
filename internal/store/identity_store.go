package store

import (
	"fmt"
	"os"
	"path/filepath"

	"wsp/internal/domain"
)

// IdentityStore persists the identity file at ${HOME}/.wsp/identity using
// the spec.md §6 binary format.
type IdentityStore struct {
	path string
}

// NewIdentityStore returns a store rooted at path. Callers typically pass
// DefaultIdentityPath().
func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// DefaultIdentityPath returns ${HOME}/.wsp/identity.
func DefaultIdentityPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".wsp", "identity"), nil
}

// SaveIdentity encrypts id.Priv under passphrase and writes it atomically.
func (s *IdentityStore) SaveIdentity(passphrase string, id domain.Identity) error {
	data, err := encodeIdentityFile(passphrase, id.Priv, id.Pub)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("store: create identity directory: %w", err)
	}
	return writeFile(s.path, data, 0o600)
}

// LoadIdentity reads and decrypts the identity file.
func (s *IdentityStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	data, err := readFile(s.path)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("store: read identity file: %w", err)
	}
	if data == nil {
		return domain.Identity{}, fmt.Errorf("store: no identity file at %s", s.path)
	}
	return decodeIdentityFile(passphrase, data)
}

var _ domain.IdentityStore = (*IdentityStore)(nil)
