package types

// InnerKind discriminates the inner plaintext message, which only ever
// appears inside an Envelope's Payload after AEAD decryption. New kinds can
// be added without breaking older decoders: an unrecognized kind decodes to
// Unknown instead of failing.
type InnerKind uint8

const (
	InnerChat InnerKind = iota
	InnerNick
	InnerFileOffer
	InnerFileChunk
	InnerFileAck
	InnerFileDone
	InnerFileReject
	InnerGroupInvite
	InnerGroupMemberAdd
	InnerGroupMemberLeave
	InnerCallOffer
	InnerCallAccept
	InnerCallReject
	InnerCallHangup
	InnerVoiceFrame

	// InnerIntroduceFrom carries the sender's public key on first contact
	// with a peer; subsequent messages omit it since the session manager
	// has cached the peer by then.
	InnerIntroduceFrom

	// InnerTyping and InnerReadReceipt are SPEC_FULL supplements dropped by
	// the distillation but present in the original design; unlike the
	// original they are AEAD-sealed like every other inner message so the
	// relay never observes even a typing/read signal in cleartext.
	InnerTyping
	InnerReadReceipt

	// InnerScreenShareRequest/Accept/Stop/Frame are a SPEC_FULL supplement
	// grounded on original_source's screen/ and tui/screen_share.rs, which
	// the distillation dropped entirely. Screen sharing is DM-only, like
	// the original.
	InnerScreenShareRequest
	InnerScreenShareAccept
	InnerScreenShareStop
	InnerScreenFrame

	// innerUnknownMarker is never itself assigned to InnerMessage.Kind on
	// the wire; it marks a decoded Unknown variant in memory.
	innerUnknownMarker
)

func (k InnerKind) String() string {
	switch k {
	case InnerChat:
		return "Chat"
	case InnerNick:
		return "Nick"
	case InnerFileOffer:
		return "FileOffer"
	case InnerFileChunk:
		return "FileChunk"
	case InnerFileAck:
		return "FileAck"
	case InnerFileDone:
		return "FileDone"
	case InnerFileReject:
		return "FileReject"
	case InnerGroupInvite:
		return "GroupInvite"
	case InnerGroupMemberAdd:
		return "GroupMemberAdd"
	case InnerGroupMemberLeave:
		return "GroupMemberLeave"
	case InnerCallOffer:
		return "CallOffer"
	case InnerCallAccept:
		return "CallAccept"
	case InnerCallReject:
		return "CallReject"
	case InnerCallHangup:
		return "CallHangup"
	case InnerVoiceFrame:
		return "VoiceFrame"
	case InnerIntroduceFrom:
		return "IntroduceFrom"
	case InnerTyping:
		return "Typing"
	case InnerReadReceipt:
		return "ReadReceipt"
	case InnerScreenShareRequest:
		return "ScreenShareRequest"
	case InnerScreenShareAccept:
		return "ScreenShareAccept"
	case InnerScreenShareStop:
		return "ScreenShareStop"
	case InnerScreenFrame:
		return "ScreenFrame"
	default:
		return "Unknown"
	}
}

// Chat is free-text chat content.
type Chat struct {
	Text string `cbor:"1,keyasint"`
}

// Nick announces a nickname change.
type Nick struct {
	Name string `cbor:"1,keyasint"`
}

// IntroduceFrom carries the sender's public key on the first message of a
// new peer relationship.
type IntroduceFrom struct {
	PublicKey PublicKey `cbor:"1,keyasint"`
}

// FileOfferMsg announces an incoming file transfer. Room is the zero value
// for a DM transfer.
type FileOfferMsg struct {
	TransferID TransferID `cbor:"1,keyasint"`
	Filename   string     `cbor:"2,keyasint"`
	TotalSize  uint64     `cbor:"3,keyasint"`
	ChunkSize  uint32     `cbor:"4,keyasint"`
	Checksum   [32]byte   `cbor:"5,keyasint"`
	Room       RoomID     `cbor:"6,keyasint,omitempty"`
}

// FileChunkMsg carries one chunk of plaintext file data.
type FileChunkMsg struct {
	TransferID TransferID `cbor:"1,keyasint"`
	Index      uint32     `cbor:"2,keyasint"`
	Data       []byte     `cbor:"3,keyasint"`
}

// FileAckMsg acknowledges receipt up to (and including) Index.
type FileAckMsg struct {
	TransferID TransferID `cbor:"1,keyasint"`
	Index      uint32     `cbor:"2,keyasint"`
}

// FileDoneMsg signals the sender has transmitted the final chunk.
type FileDoneMsg struct {
	TransferID TransferID `cbor:"1,keyasint"`
}

// FileRejectMsg signals the receiver declined an offer.
type FileRejectMsg struct {
	TransferID TransferID `cbor:"1,keyasint"`
}

// GroupInviteMsg invites the recipient to join a room, sent as an
// encrypted DM (never as a room broadcast, since the invitee is not yet a
// member).
type GroupInviteMsg struct {
	RoomID  RoomID      `cbor:"1,keyasint"`
	Name    string      `cbor:"2,keyasint"`
	Members []PublicKey `cbor:"3,keyasint"`
}

// GroupMemberAddMsg announces a new room member, fanned out pairwise to
// every other member as a RoomCipher so everyone's local Room.Members
// agrees without the relay ever learning membership from message content.
type GroupMemberAddMsg struct {
	RoomID    RoomID    `cbor:"1,keyasint"`
	PublicKey PublicKey `cbor:"2,keyasint"`
}

// GroupMemberLeaveMsg announces a departing room member.
type GroupMemberLeaveMsg struct {
	RoomID    RoomID    `cbor:"1,keyasint"`
	PublicKey PublicKey `cbor:"2,keyasint"`
}

// CallOfferMsg proposes a call.
type CallOfferMsg struct {
	CallID CallID    `cbor:"1,keyasint"`
	Scope  Scope      `cbor:"2,keyasint"`
}

// CallAcceptMsg accepts a pending call offer.
type CallAcceptMsg struct {
	CallID CallID `cbor:"1,keyasint"`
}

// CallRejectMsg rejects a pending call offer.
type CallRejectMsg struct {
	CallID CallID `cbor:"1,keyasint"`
}

// CallHangupMsg ends an active call.
type CallHangupMsg struct {
	CallID CallID `cbor:"1,keyasint"`
}

// VoiceFrameMsg carries one Opus-encoded audio frame.
type VoiceFrameMsg struct {
	CallID CallID `cbor:"1,keyasint"`
	Seq    uint32 `cbor:"2,keyasint"`
	Opus   []byte `cbor:"3,keyasint"`
}

// TypingMsg signals the sender is composing a message.
type TypingMsg struct{}

// ReadReceiptMsg acknowledges a message has been displayed to the user.
type ReadReceiptMsg struct {
	UpToTimestamp int64 `cbor:"1,keyasint"`
}

// ScreenShareRequestMsg asks a DM peer for permission to share the
// sender's screen.
type ScreenShareRequestMsg struct{}

// ScreenShareAcceptMsg answers a pending request; Accept false is a
// rejection, mirroring the original's shared screen_share_accept message
// for both outcomes.
type ScreenShareAcceptMsg struct {
	Accept bool `cbor:"1,keyasint"`
}

// ScreenShareStopMsg ends a share from either the sharer's or the
// viewer's side.
type ScreenShareStopMsg struct{}

// ScreenFrameMsg carries one JPEG-compressed captured frame, sized to
// MaxCaptureWidth and tagged with a sequence number for drop detection.
type ScreenFrameMsg struct {
	Width  uint32 `cbor:"1,keyasint"`
	Height uint32 `cbor:"2,keyasint"`
	JPEG   []byte `cbor:"3,keyasint"`
	Seq    uint64 `cbor:"4,keyasint"`
}

// InnerMessage is the tagged-union envelope payload. Kind selects which of
// the typed fields is meaningful; exactly one is populated per message.
// RawPayload/RawKind are set instead of the typed fields when the codec
// encounters a kind value it does not recognize, so callers can surface an
// "unsupported" event rather than disconnecting.
type InnerMessage struct {
	Kind InnerKind

	Chat             *Chat
	Nick             *Nick
	IntroduceFrom    *IntroduceFrom
	FileOffer        *FileOfferMsg
	FileChunk        *FileChunkMsg
	FileAck          *FileAckMsg
	FileDone         *FileDoneMsg
	FileReject       *FileRejectMsg
	GroupInvite      *GroupInviteMsg
	GroupMemberAdd   *GroupMemberAddMsg
	GroupMemberLeave *GroupMemberLeaveMsg
	CallOffer        *CallOfferMsg
	CallAccept       *CallAcceptMsg
	CallReject       *CallRejectMsg
	CallHangup       *CallHangupMsg
	VoiceFrame       *VoiceFrameMsg
	Typing           *TypingMsg
	ReadReceipt      *ReadReceiptMsg
	ScreenShareRequest *ScreenShareRequestMsg
	ScreenShareAccept  *ScreenShareAcceptMsg
	ScreenShareStop    *ScreenShareStopMsg
	ScreenFrame        *ScreenFrameMsg

	// Unknown holds an unrecognized variant's raw tag and payload bytes,
	// set only when Kind did not match any known case.
	Unknown *UnknownInner
}

// IsUnknown reports whether this message is an unrecognized variant.
func (m InnerMessage) IsUnknown() bool { return m.Unknown != nil }

// UnknownInner preserves an unrecognized inner-message variant verbatim so
// it can be surfaced to the UI as an "unsupported" event and, if the
// message is ever re-serialized (e.g. relayed), round-tripped without loss.
type UnknownInner struct {
	RawKind    uint8
	RawPayload []byte
}
