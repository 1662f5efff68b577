package store

import (
	"encoding/hex"
	"fmt"

	"wsp/internal/domain"
)

func decodeHexPublicKey(s string) (domain.PublicKey, error) {
	var pk domain.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(pk) {
		return pk, fmt.Errorf("store: invalid public key %q", s)
	}
	copy(pk[:], b)
	return pk, nil
}

func decodeHexID16(s string) ([16]byte, error) {
	var id [16]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("store: invalid 128-bit id %q", s)
	}
	copy(id[:], b)
	return id, nil
}
