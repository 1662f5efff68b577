package interfaces

import domaintypes "wsp/internal/domain/types"

// IdentityStore persists the long-term identity keypair.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// HistoryStore appends and loads the optional local chat history log.
type HistoryStore interface {
	AppendRecord(rec domaintypes.HistoryRecord) error
	LoadRecords() ([]domaintypes.HistoryRecord, error)
}

// RoomStore persists locally-known room membership across process
// restarts (rooms themselves are not authoritative on the relay).
type RoomStore interface {
	SaveRoom(room domaintypes.Room) error
	LoadRooms() ([]domaintypes.Room, error)
	DeleteRoom(id domaintypes.RoomID) error
}
