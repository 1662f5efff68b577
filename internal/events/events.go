// Package events is the typed event bus the core emits to the UI
// collaborator, mirroring the teacher's clean interface-based wiring but
// realized as a channel instead of a polled store (the UI here is a live
// TUI, not a request/response client).
package events

import (
	"time"

	"wsp/internal/domain"
)

// Kind discriminates a UI-facing event.
type Kind uint8

const (
	KindMessageReceived Kind = iota
	KindPeerJoined
	KindNicknameChanged
	KindFileProgress
	KindFileComplete
	KindFileFailed
	KindCallStateChanged
	KindGroupMembershipChanged
	KindUnsupported
	KindError
	KindScreenShareStateChanged
)

// Event is one notification delivered to the UI.
type Event struct {
	Kind Kind
	At   time.Time

	// Populated depending on Kind; zero values are ignored by consumers
	// that don't care about a given event.
	Peer        domain.PublicKey
	Nickname    string
	Text        string
	Room        domain.RoomID
	TransferID  domain.TransferID
	BytesDone   uint64
	BytesTotal  uint64
	CallID      domain.CallID
	CallState   domain.CallState
	UnknownKind uint8
	Err         error

	ScreenShareState domain.ScreenShareState
}

// Bus is a bounded, non-blocking fan-out from core components to the UI.
// A full bus drops the oldest pending event rather than blocking a
// network or audio thread, per spec.md §5's "no lock held across a
// suspension point" policy extended to event delivery.
type Bus struct {
	ch chan Event
}

// NewBus returns a bus buffering up to capacity pending events.
func NewBus(capacity int) *Bus {
	return &Bus{ch: make(chan Event, capacity)}
}

// Emit delivers ev, dropping the oldest queued event if the bus is full.
func (b *Bus) Emit(ev Event) {
	select {
	case b.ch <- ev:
		return
	default:
	}
	select {
	case <-b.ch:
	default:
	}
	select {
	case b.ch <- ev:
	default:
	}
}

// Events returns the channel the UI collaborator reads from.
func (b *Bus) Events() <-chan Event { return b.ch }
