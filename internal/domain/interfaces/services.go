package interfaces

import (
	"context"

	domaintypes "wsp/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects the local identity.
type IdentityService interface {
	GenerateIdentity(passphrase string) (domaintypes.Identity, domaintypes.Fingerprint, error)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// SessionService owns the Peer table: shared-secret derivation, nonce
// discipline, nickname propagation, presence beaconing, and reconnect.
type SessionService interface {
	// Run drives the event loop: presence beacon on connect/reconnect,
	// inbound envelope dispatch, and keepalive. It blocks until ctx is
	// canceled or an unrecoverable transport error occurs.
	Run(ctx context.Context) error

	// SendChat encrypts and sends a Chat message to peer, deriving or
	// reusing its shared secret and advancing its send counter.
	SendChat(ctx context.Context, peer domaintypes.PublicKey, text string) error

	// SetNickname updates the local nickname and announces it to peers.
	SetNickname(ctx context.Context, nickname string) error

	// Peers returns a snapshot of the current Peer table.
	Peers() []domaintypes.Peer

	// Peer returns the Peer record for pk, if known.
	Peer(pk domaintypes.PublicKey) (domaintypes.Peer, bool)

	// SafetyNumber returns the out-of-band verification code for pk.
	SafetyNumber(pk domaintypes.PublicKey) (domaintypes.SafetyNumber, error)

	// EncryptForPeer seals plaintext for pk using the session AEAD
	// discipline, advancing pk's send counter. It is the capability handed
	// to the File and Voice engines at construction.
	EncryptForPeer(pk domaintypes.PublicKey, plaintext []byte) ([]byte, error)

	// DecryptFromPeer opens ciphertext received from pk, enforcing strict
	// nonce monotonicity.
	DecryptFromPeer(pk domaintypes.PublicKey, ciphertext []byte) ([]byte, error)

	// SendDirect wraps an already-encrypted payload in a DirectCipher
	// envelope addressed to pk's last-known session and transmits it.
	SendDirect(ctx context.Context, pk domaintypes.PublicKey, payload []byte) error

	// LoadHistory decrypts and returns every locally logged chat line, in
	// append order. It returns an empty slice, not an error, if no history
	// store was configured.
	LoadHistory() ([]domaintypes.HistoryLine, error)
}

// GroupService manages room creation, invites, membership, and pairwise
// fan-out of room messages.
type GroupService interface {
	CreateRoom(ctx context.Context, name string) (domaintypes.Room, error)
	InviteToRoom(ctx context.Context, room domaintypes.RoomID, peer domaintypes.PublicKey) error
	AcceptInvite(ctx context.Context, invite domaintypes.GroupInviteMsg) (domaintypes.Room, error)
	LeaveRoom(ctx context.Context, room domaintypes.RoomID) error

	// Fanout encrypts plaintext independently per current member (other
	// than self) and sends the resulting ciphertexts as separate
	// RoomCipher envelopes.
	Fanout(ctx context.Context, room domaintypes.RoomID, plaintext []byte) error

	Rooms() []domaintypes.Room
	Room(id domaintypes.RoomID) (domaintypes.Room, bool)

	// EnsureMember adds from to room's local roster if it is not already
	// present. It is called for every room-scoped inner message, not only
	// the explicit GroupMemberAdd control message, so a member's roster
	// self-heals from whoever it actually hears from in the room.
	EnsureMember(room domaintypes.RoomID, from domaintypes.PublicKey)

	// HandleInner processes a decrypted inner message addressed to the
	// group manager (GroupInvite, GroupMemberAdd, GroupMemberLeave).
	HandleInner(ctx context.Context, from domaintypes.PublicKey, msg domaintypes.InnerMessage) error
}

// FileTransferService drives the offer/accept/chunk/ack/done state
// machine for both senders and receivers.
type FileTransferService interface {
	OfferFile(ctx context.Context, scope domaintypes.Scope, path string) (domaintypes.TransferID, error)
	AcceptFile(ctx context.Context, id domaintypes.TransferID, destDir string) error
	RejectFile(ctx context.Context, id domaintypes.TransferID) error
	CancelFile(ctx context.Context, id domaintypes.TransferID) error

	Transfers() []domaintypes.FileTransfer

	// HandleInner processes a decrypted inner message addressed to the
	// file engine (FileOffer, FileChunk, FileAck, FileDone, FileReject).
	HandleInner(ctx context.Context, from domaintypes.PublicKey, msg domaintypes.InnerMessage) error
}

// VoiceService drives the call state machine and audio pipeline.
type VoiceService interface {
	StartCall(ctx context.Context, scope domaintypes.Scope) (domaintypes.CallID, error)
	AcceptCall(ctx context.Context, id domaintypes.CallID) error
	RejectCall(ctx context.Context, id domaintypes.CallID) error
	Hangup(ctx context.Context, id domaintypes.CallID) error
	SetMuted(ctx context.Context, id domaintypes.CallID, muted bool) error

	Calls() []domaintypes.Call

	// HandleInner processes a decrypted inner message addressed to the
	// voice engine (CallOffer, CallAccept, CallReject, CallHangup,
	// VoiceFrame).
	HandleInner(ctx context.Context, from domaintypes.PublicKey, msg domaintypes.InnerMessage) error
}

// ScreenShareService drives the DM-only screen-share request/accept/stop
// state machine and its JPEG frame pipeline. A SPEC_FULL supplement
// grounded on original_source's screen/ package and tui/screen_share.rs.
type ScreenShareService interface {
	// RequestShare asks peer for permission to share the local screen.
	RequestShare(ctx context.Context, peer domaintypes.PublicKey) error
	// AcceptShare accepts a pending inbound request from peer and begins
	// receiving frames.
	AcceptShare(ctx context.Context, peer domaintypes.PublicKey) error
	// RejectShare declines a pending inbound request from peer.
	RejectShare(ctx context.Context, peer domaintypes.PublicKey) error
	// StopShare ends whatever screen-share relationship is active with
	// peer, whether the local side is sharing or viewing.
	StopShare(ctx context.Context, peer domaintypes.PublicKey) error

	Shares() []domaintypes.ScreenShareStatus

	// HandleInner processes a decrypted inner message addressed to the
	// screen-share engine (ScreenShareRequest, ScreenShareAccept,
	// ScreenShareStop, ScreenFrame).
	HandleInner(ctx context.Context, from domaintypes.PublicKey, msg domaintypes.InnerMessage) error
}
