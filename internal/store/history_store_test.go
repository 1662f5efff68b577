package store_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"wsp/internal/domain"
	"wsp/internal/store"
)

func TestHistoryStoreAppendLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history-abc123")
	var hist domain.HistoryStore = store.NewHistoryStore(path)

	rec1 := domain.HistoryRecord{
		Nonce:      [12]byte{1},
		Ciphertext: []byte("first"),
		Tag:        [16]byte{2},
		Timestamp:  time.Unix(1000, 0).UTC(),
	}
	rec2 := domain.HistoryRecord{
		Nonce:      [12]byte{3},
		Ciphertext: []byte("second-record"),
		Tag:        [16]byte{4},
		Timestamp:  time.Unix(2000, 0).UTC(),
	}

	if err := hist.AppendRecord(rec1); err != nil {
		t.Fatalf("AppendRecord 1: %v", err)
	}
	if err := hist.AppendRecord(rec2); err != nil {
		t.Fatalf("AppendRecord 2: %v", err)
	}

	got, err := hist.LoadRecords()
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !bytes.Equal(got[0].Ciphertext, rec1.Ciphertext) || got[0].Nonce != rec1.Nonce {
		t.Fatalf("record 1 mismatch: %+v", got[0])
	}
	if !bytes.Equal(got[1].Ciphertext, rec2.Ciphertext) || !got[1].Timestamp.Equal(rec2.Timestamp) {
		t.Fatalf("record 2 mismatch: %+v", got[1])
	}
}

func TestHistoryStoreMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history-none")
	var hist domain.HistoryStore = store.NewHistoryStore(path)

	got, err := hist.LoadRecords()
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}
