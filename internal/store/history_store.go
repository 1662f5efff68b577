package store

import (
	"encoding/binary"
	"fmt"
	"os"

	"wsp/internal/domain"
)

// HistoryStore appends AEAD-sealed inner-message records to a per-identity
// log file at ${HOME}/.wsp/history-<public_key_prefix>, per spec.md §6.
// Each record on disk is length-prefixed:
//
//	len(u32 be) || nonce(12) || tag(16) || timestamp_unixnano(i64 be) || ciphertext
type HistoryStore struct {
	path string
}

// NewHistoryStore returns a store appending to the file at path.
func NewHistoryStore(path string) *HistoryStore { return &HistoryStore{path: path} }

// AppendRecord appends rec to the history file, creating it if necessary.
func (s *HistoryStore) AppendRecord(rec domain.HistoryRecord) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("store: open history file: %w", err)
	}
	defer f.Close()

	body := make([]byte, 0, nonceSize+tagSize+8+len(rec.Ciphertext)+len(rec.Tag)-tagSize)
	body = append(body, rec.Nonce[:]...)
	body = append(body, rec.Tag[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(rec.Timestamp.UnixNano()))
	body = append(body, ts[:]...)
	body = append(body, rec.Ciphertext...)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("store: write history length prefix: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("store: write history record: %w", err)
	}
	return nil
}

// LoadRecords reads every record from the history file in order. A missing
// file yields an empty slice, not an error.
func (s *HistoryStore) LoadRecords() ([]domain.HistoryRecord, error) {
	data, err := readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("store: read history file: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var records []domain.HistoryRecord
	for off := 0; off < len(data); {
		if off+4 > len(data) {
			break
		}
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if off+n > len(data) {
			break // truncated tail record, ignore
		}
		body := data[off : off+n]
		off += n

		const headerLen = nonceSize + tagSize + 8
		if len(body) < headerLen {
			continue
		}
		var rec domain.HistoryRecord
		copy(rec.Nonce[:], body[0:nonceSize])
		copy(rec.Tag[:], body[nonceSize:nonceSize+tagSize])
		tsNano := binary.BigEndian.Uint64(body[nonceSize+tagSize : headerLen])
		rec.Timestamp = timeFromUnixNano(tsNano)
		rec.Ciphertext = append([]byte(nil), body[headerLen:]...)
		records = append(records, rec)
	}
	return records, nil
}

var _ domain.HistoryStore = (*HistoryStore)(nil)
