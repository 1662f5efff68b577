package types

// ScreenShareState is the per-peer screen-share state machine's current
// state. Screen sharing is DM-only, so at most one share and one view can
// be active per peer at a time.
type ScreenShareState uint8

const (
	ScreenShareIdle ScreenShareState = iota
	// ScreenShareRequesting is entered after sending a request and before
	// the peer responds.
	ScreenShareRequesting
	// ScreenSharePendingAccept is entered on receiving a request, waiting
	// for the local user to accept or reject it.
	ScreenSharePendingAccept
	// ScreenShareSharing is entered once the peer has accepted a locally
	// initiated request: frames are being captured and sent.
	ScreenShareSharing
	// ScreenShareViewing is entered once the local user has accepted an
	// inbound request: frames are being received and decoded.
	ScreenShareViewing
)

func (s ScreenShareState) String() string {
	switch s {
	case ScreenShareIdle:
		return "idle"
	case ScreenShareRequesting:
		return "requesting"
	case ScreenSharePendingAccept:
		return "pending-accept"
	case ScreenShareSharing:
		return "sharing"
	case ScreenShareViewing:
		return "viewing"
	default:
		return "unknown"
	}
}

// ScreenShareStatus is the locally observable state of a screen-share
// relationship with one peer.
type ScreenShareStatus struct {
	Peer  PublicKey
	State ScreenShareState
}
