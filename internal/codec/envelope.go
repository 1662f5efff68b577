package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"wsp/internal/domain"
)

// EncodeEnvelope serializes an outer envelope for a single WebSocket
// binary frame.
func EncodeEnvelope(e domain.Envelope) ([]byte, error) {
	b, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("codec: encode envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope deserializes one WebSocket binary frame into an outer
// envelope. Fields the current version does not recognize are ignored by
// CBOR's map decoding rather than causing an error.
func DecodeEnvelope(b []byte) (domain.Envelope, error) {
	var e domain.Envelope
	if err := cbor.Unmarshal(b, &e); err != nil {
		return domain.Envelope{}, fmt.Errorf("codec: decode envelope: %w", err)
	}
	return e, nil
}
