package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"wsp/internal/domain"
)

// EncodeHistoryEntry serializes a history entry for AEAD sealing before it
// is written to disk.
func EncodeHistoryEntry(e domain.HistoryEntry) ([]byte, error) {
	out, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("codec: encode history entry: %w", err)
	}
	return out, nil
}

// DecodeHistoryEntry deserializes a history entry.
func DecodeHistoryEntry(b []byte) (domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	if err := cbor.Unmarshal(b, &e); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("codec: decode history entry: %w", err)
	}
	return e, nil
}
