package types

import "time"

// CallState is the call state machine's current state.
type CallState uint8

const (
	CallIdle CallState = iota
	CallOffering
	CallRinging
	CallActive
	CallEnding
	CallFailed
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallOffering:
		return "offering"
	case CallRinging:
		return "ringing"
	case CallActive:
		return "active"
	case CallEnding:
		return "ending"
	case CallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParticipantAudio is the per-participant decode-side state the voice
// engine keeps for one call: its jitter buffer and the last sequence
// number observed from it.
type ParticipantAudio struct {
	PublicKey  PublicKey
	LastSeq    uint32
	SeqPrimed  bool
}

// Call is created on `/call` and destroyed on `/hangup` or when the last
// remote participant leaves.
type Call struct {
	ID    CallID
	Scope Scope
	State CallState

	Participants []PublicKey
	Audio        map[PublicKey]*ParticipantAudio

	StartedAt time.Time
	Muted     bool
}
