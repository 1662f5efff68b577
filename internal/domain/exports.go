package domain

import (
	interfaces "wsp/internal/domain/interfaces"
	types "wsp/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact
// imports.
type (
	PublicKey    = types.PublicKey
	PrivateKey   = types.PrivateKey
	Fingerprint  = types.Fingerprint
	SafetyNumber = types.SafetyNumber

	SessionID  = types.SessionID
	RoomID     = types.RoomID
	TransferID = types.TransferID
	CallID     = types.CallID

	Identity   = types.Identity
	Connection = types.Connection
	Peer       = types.Peer
	Room       = types.Room

	ScopeKind = types.ScopeKind
	Scope     = types.Scope

	FileTransferDirection = types.FileTransferDirection
	FileTransfer          = types.FileTransfer

	CallState        = types.CallState
	ParticipantAudio = types.ParticipantAudio
	Call             = types.Call

	EnvelopeKind = types.EnvelopeKind
	Envelope     = types.Envelope

	InnerKind            = types.InnerKind
	InnerMessage         = types.InnerMessage
	UnknownInner         = types.UnknownInner
	Chat                 = types.Chat
	Nick                 = types.Nick
	IntroduceFrom        = types.IntroduceFrom
	FileOfferMsg         = types.FileOfferMsg
	FileChunkMsg         = types.FileChunkMsg
	FileAckMsg           = types.FileAckMsg
	FileDoneMsg          = types.FileDoneMsg
	FileRejectMsg        = types.FileRejectMsg
	GroupInviteMsg       = types.GroupInviteMsg
	GroupMemberAddMsg    = types.GroupMemberAddMsg
	GroupMemberLeaveMsg  = types.GroupMemberLeaveMsg
	CallOfferMsg         = types.CallOfferMsg
	CallAcceptMsg        = types.CallAcceptMsg
	CallRejectMsg        = types.CallRejectMsg
	CallHangupMsg        = types.CallHangupMsg
	VoiceFrameMsg        = types.VoiceFrameMsg
	TypingMsg            = types.TypingMsg
	ReadReceiptMsg       = types.ReadReceiptMsg
	ScreenShareRequestMsg = types.ScreenShareRequestMsg
	ScreenShareAcceptMsg  = types.ScreenShareAcceptMsg
	ScreenShareStopMsg    = types.ScreenShareStopMsg
	ScreenFrameMsg        = types.ScreenFrameMsg

	ScreenShareState  = types.ScreenShareState
	ScreenShareStatus = types.ScreenShareStatus

	HistoryRecord  = types.HistoryRecord
	HistoryEntry   = types.HistoryEntry
	HistoryLine    = types.HistoryLine
	PresenceBeacon = types.PresenceBeacon
)

// Kind constants re-exported for compact call sites.
const (
	ScopeDM   = types.ScopeDM
	ScopeRoom = types.ScopeRoom

	DirectionSend = types.DirectionSend
	DirectionRecv = types.DirectionRecv

	DefaultChunkSize = types.DefaultChunkSize
	WindowSize       = types.WindowSize

	CallIdle     = types.CallIdle
	CallOffering = types.CallOffering
	CallRinging  = types.CallRinging
	CallActive   = types.CallActive
	CallEnding   = types.CallEnding
	CallFailed   = types.CallFailed

	KindHello        = types.KindHello
	KindWelcome      = types.KindWelcome
	KindLookup       = types.KindLookup
	KindLookupResult = types.KindLookupResult
	KindDirectCipher = types.KindDirectCipher
	KindRoomCipher   = types.KindRoomCipher
	KindJoinRoom     = types.KindJoinRoom
	KindLeaveRoom    = types.KindLeaveRoom
	KindPing         = types.KindPing
	KindPong         = types.KindPong

	InnerChat             = types.InnerChat
	InnerNick             = types.InnerNick
	InnerFileOffer        = types.InnerFileOffer
	InnerFileChunk        = types.InnerFileChunk
	InnerFileAck          = types.InnerFileAck
	InnerFileDone         = types.InnerFileDone
	InnerFileReject       = types.InnerFileReject
	InnerGroupInvite      = types.InnerGroupInvite
	InnerGroupMemberAdd   = types.InnerGroupMemberAdd
	InnerGroupMemberLeave = types.InnerGroupMemberLeave
	InnerCallOffer        = types.InnerCallOffer
	InnerCallAccept       = types.InnerCallAccept
	InnerCallReject       = types.InnerCallReject
	InnerCallHangup       = types.InnerCallHangup
	InnerVoiceFrame       = types.InnerVoiceFrame
	InnerIntroduceFrom    = types.InnerIntroduceFrom
	InnerTyping           = types.InnerTyping
	InnerReadReceipt      = types.InnerReadReceipt
	InnerScreenShareRequest = types.InnerScreenShareRequest
	InnerScreenShareAccept  = types.InnerScreenShareAccept
	InnerScreenShareStop    = types.InnerScreenShareStop
	InnerScreenFrame        = types.InnerScreenFrame

	ScreenShareIdle          = types.ScreenShareIdle
	ScreenShareRequesting    = types.ScreenShareRequesting
	ScreenSharePendingAccept = types.ScreenSharePendingAccept
	ScreenShareSharing       = types.ScreenShareSharing
	ScreenShareViewing       = types.ScreenShareViewing
)

// Interface aliases expose domain interfaces from the interfaces
// subpackage.
type (
	IdentityService     = interfaces.IdentityService
	SessionService      = interfaces.SessionService
	GroupService        = interfaces.GroupService
	FileTransferService = interfaces.FileTransferService
	VoiceService        = interfaces.VoiceService
	ScreenShareService  = interfaces.ScreenShareService
	RelayTransport      = interfaces.RelayTransport
	IdentityStore       = interfaces.IdentityStore
	HistoryStore        = interfaces.HistoryStore
	RoomStore           = interfaces.RoomStore
)
