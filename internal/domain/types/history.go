package types

import "time"

// HistoryRecord is one append-only entry in the optional local history
// file: an AEAD-sealed serialized inner message plus a local timestamp. The
// AEAD key is derived from the identity, not from any peer shared secret,
// so history remains readable independent of peer session state.
type HistoryRecord struct {
	Nonce      [12]byte
	Ciphertext []byte
	Tag        [16]byte
	Timestamp  time.Time
}

// HistoryEntry is the plaintext logged inside a HistoryRecord's ciphertext:
// enough to reconstruct one line of scrollback without touching the
// network. Room is zero for a DM entry.
type HistoryEntry struct {
	Peer     PublicKey `cbor:"1,keyasint"`
	Room     RoomID    `cbor:"2,keyasint,omitempty"`
	Outbound bool      `cbor:"3,keyasint"`
	Text     string    `cbor:"4,keyasint"`
}

// HistoryLine pairs a decoded HistoryEntry with the local timestamp its
// enclosing HistoryRecord was appended under, for scrollback replay.
type HistoryLine struct {
	At    time.Time
	Entry HistoryEntry
}
