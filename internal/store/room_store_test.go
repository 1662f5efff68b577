package store_test

import (
	"testing"

	"wsp/internal/domain"
	"wsp/internal/store"
)

func TestRoomStoreSaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	var rooms domain.RoomStore = store.NewRoomStore(dir)

	room := domain.Room{
		ID:      domain.RoomID{1, 2, 3},
		Name:    "dev",
		Creator: domain.PublicKey{9},
		Members: []domain.PublicKey{{9}, {8}, {7}},
	}
	if err := rooms.SaveRoom(room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	loaded, err := rooms.LoadRooms()
	if err != nil {
		t.Fatalf("LoadRooms: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Name != "dev" || len(loaded[0].Members) != 3 {
		t.Fatalf("unexpected loaded rooms: %+v", loaded)
	}

	if err := rooms.DeleteRoom(room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	loaded, err = rooms.LoadRooms()
	if err != nil {
		t.Fatalf("LoadRooms after delete: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no rooms after delete, got %d", len(loaded))
	}
}
