package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"wsp/internal/domain"
)

// EncodeBeacon serializes a presence beacon for placement directly in an
// untargeted DirectCipher envelope's Payload. Unlike every other inner
// message, a beacon is never AEAD-sealed: there is no peer shared secret
// yet, and it carries only a public key and nickname, not message content.
func EncodeBeacon(b domain.PresenceBeacon) ([]byte, error) {
	out, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("codec: encode presence beacon: %w", err)
	}
	return out, nil
}

// DecodeBeacon deserializes a presence beacon.
func DecodeBeacon(b []byte) (domain.PresenceBeacon, error) {
	var beacon domain.PresenceBeacon
	if err := cbor.Unmarshal(b, &beacon); err != nil {
		return domain.PresenceBeacon{}, fmt.Errorf("codec: decode presence beacon: %w", err)
	}
	return beacon, nil
}
