package store_test

import (
	"path/filepath"
	"testing"

	"wsp/internal/domain"
	"wsp/internal/store"
)

func TestIdentityStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	var ids domain.IdentityStore = store.NewIdentityStore(path)

	id := domain.Identity{
		Priv: domain.PrivateKey{1, 2, 3},
		Pub:  domain.PublicKey{4, 5, 6},
	}

	if err := ids.SaveIdentity("correct horse battery staple 1!", id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	got, err := ids.LoadIdentity("correct horse battery staple 1!")
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if got.Priv != id.Priv || got.Pub != id.Pub {
		t.Fatalf("mismatch after load: got %+v want %+v", got, id)
	}
}

func TestIdentityStoreWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	var ids domain.IdentityStore = store.NewIdentityStore(path)

	id := domain.Identity{Priv: domain.PrivateKey{9}, Pub: domain.PublicKey{8}}
	if err := ids.SaveIdentity("correct horse battery staple 1!", id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	if _, err := ids.LoadIdentity("wrong password entirely 1!"); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}
