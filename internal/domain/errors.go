package domain

import "errors"

// Sentinel errors shared across services, following the teacher's small
// unexported-then-exported-sentinel convention.
var (
	// ErrWrongPassphrase is returned when identity decryption fails because
	// the supplied passphrase does not match the one used at creation.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrWeakPassphrase is returned when a new identity's passphrase fails
	// the strength policy.
	ErrWeakPassphrase = errors.New("passphrase is too weak")

	// ErrUnknownPeer is returned when an operation references a public key
	// the session manager has no Peer record for.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrNonceExhausted is returned when a peer's send counter has reached
	// 2^64-1; per spec.md the session must be terminated rather than reuse
	// a nonce.
	ErrNonceExhausted = errors.New("nonce counter exhausted, session must be rekeyed")

	// ErrReplay is returned when an inbound message's nonce counter does
	// not match the expected next value for its direction.
	ErrReplay = errors.New("nonce counter mismatch, message dropped")

	// ErrUnknownRoom is returned when an operation references a room-id the
	// group manager has no local Room record for.
	ErrUnknownRoom = errors.New("unknown room")

	// ErrUnknownTransfer is returned when a chunk/ack/done/reject message
	// references a transfer-id with no matching FileTransfer.
	ErrUnknownTransfer = errors.New("unknown file transfer")

	// ErrTransferRejected is returned to a sender-side caller when the
	// receiver rejected an offer.
	ErrTransferRejected = errors.New("file transfer rejected")

	// ErrInvalidCallState is returned when a call command is issued in a
	// state that does not permit it (e.g. /accept-call while Idle).
	ErrInvalidCallState = errors.New("invalid call state for requested transition")

	// ErrUnknownCall is returned when an operation references a call-id the
	// voice engine has no local Call record for.
	ErrUnknownCall = errors.New("unknown call")

	// ErrRelayClosed is returned by RelayTransport methods after the
	// underlying connection has been closed and no reconnect is pending.
	ErrRelayClosed = errors.New("relay connection closed")

	// ErrNoScreenShare is returned when an operation references a peer
	// with no active or pending screen-share relationship.
	ErrNoScreenShare = errors.New("no screen share with that peer")

	// ErrScreenShareBusy is returned when a screen-share request or
	// capture is attempted while one is already active with that peer.
	ErrScreenShareBusy = errors.New("already sharing or viewing with that peer")

	// ErrScreenShareRejected is returned to a requester when the peer
	// declined the share.
	ErrScreenShareRejected = errors.New("screen share rejected")

	// ErrScreenShareDMOnly is returned when a screen-share operation is
	// attempted against a room scope; the feature is DM-only.
	ErrScreenShareDMOnly = errors.New("screen sharing is DM-only")
)
