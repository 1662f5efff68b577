package store

import (
	"fmt"
	"os"
	"path/filepath"

	"wsp/internal/domain"
)

// roomFile is the JSON-serializable form of domain.Room written to disk.
type roomFile struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Creator string   `json:"creator"`
	Members []string `json:"members"`
}

// RoomStore persists locally-known room membership under a directory, one
// JSON file per room, keyed by room-id.
type RoomStore struct {
	dir string
}

// NewRoomStore returns a store rooted at dir.
func NewRoomStore(dir string) *RoomStore { return &RoomStore{dir: dir} }

func (s *RoomStore) pathFor(id domain.RoomID) string {
	return filepath.Join(s.dir, "room-"+id.String()+".json")
}

// SaveRoom writes room's current state, creating the store directory if
// needed.
func (s *RoomStore) SaveRoom(room domain.Room) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("store: create room directory: %w", err)
	}
	rf := roomFile{
		ID:      room.ID.String(),
		Name:    room.Name,
		Creator: room.Creator.String(),
		Members: make([]string, len(room.Members)),
	}
	for i, m := range room.Members {
		rf.Members[i] = m.String()
	}
	return writeJSON(s.pathFor(room.ID), rf, 0o600)
}

// LoadRooms reads every room file in the store directory.
func (s *RoomStore) LoadRooms() ([]domain.Room, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list room directory: %w", err)
	}

	var rooms []domain.Room
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var rf roomFile
		if err := readJSON(filepath.Join(s.dir, e.Name()), &rf); err != nil {
			return nil, fmt.Errorf("store: read room file %s: %w", e.Name(), err)
		}
		room, err := decodeRoomFile(rf)
		if err != nil {
			continue // skip corrupted entries, self-heals from live membership
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes the on-disk record for id, if present.
func (s *RoomStore) DeleteRoom(id domain.RoomID) error {
	err := os.Remove(s.pathFor(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete room file: %w", err)
	}
	return nil
}

func decodeRoomFile(rf roomFile) (domain.Room, error) {
	id, err := decodeHexID16(rf.ID)
	if err != nil {
		return domain.Room{}, err
	}
	creator, err := decodeHexPublicKey(rf.Creator)
	if err != nil {
		return domain.Room{}, err
	}
	members := make([]domain.PublicKey, 0, len(rf.Members))
	for _, m := range rf.Members {
		pk, err := decodeHexPublicKey(m)
		if err != nil {
			continue
		}
		members = append(members, pk)
	}
	return domain.Room{ID: domain.RoomID(id), Name: rf.Name, Creator: creator, Members: members}, nil
}

var _ domain.RoomStore = (*RoomStore)(nil)
