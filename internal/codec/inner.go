package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"wsp/internal/domain"
)

// wireInner is the tagged-union envelope actually placed on the wire:
// a small kind tag plus the raw CBOR encoding of the variant-specific
// struct. Keeping Payload raw lets DecodeInner defer variant decoding
// until after it has checked Kind against the registry.
type wireInner struct {
	Kind    uint8           `cbor:"1,keyasint"`
	Payload cbor.RawMessage `cbor:"2,keyasint"`
}

// EncodeInner serializes an inner plaintext message for placement inside an
// envelope's AEAD-sealed Payload.
func EncodeInner(msg domain.InnerMessage) ([]byte, error) {
	if msg.IsUnknown() {
		return nil, fmt.Errorf("codec: cannot encode an Unknown inner message")
	}

	var payload []byte
	var err error
	switch msg.Kind {
	case domain.InnerChat:
		payload, err = cbor.Marshal(msg.Chat)
	case domain.InnerNick:
		payload, err = cbor.Marshal(msg.Nick)
	case domain.InnerIntroduceFrom:
		payload, err = cbor.Marshal(msg.IntroduceFrom)
	case domain.InnerFileOffer:
		payload, err = cbor.Marshal(msg.FileOffer)
	case domain.InnerFileChunk:
		payload, err = cbor.Marshal(msg.FileChunk)
	case domain.InnerFileAck:
		payload, err = cbor.Marshal(msg.FileAck)
	case domain.InnerFileDone:
		payload, err = cbor.Marshal(msg.FileDone)
	case domain.InnerFileReject:
		payload, err = cbor.Marshal(msg.FileReject)
	case domain.InnerGroupInvite:
		payload, err = cbor.Marshal(msg.GroupInvite)
	case domain.InnerGroupMemberAdd:
		payload, err = cbor.Marshal(msg.GroupMemberAdd)
	case domain.InnerGroupMemberLeave:
		payload, err = cbor.Marshal(msg.GroupMemberLeave)
	case domain.InnerCallOffer:
		payload, err = cbor.Marshal(msg.CallOffer)
	case domain.InnerCallAccept:
		payload, err = cbor.Marshal(msg.CallAccept)
	case domain.InnerCallReject:
		payload, err = cbor.Marshal(msg.CallReject)
	case domain.InnerCallHangup:
		payload, err = cbor.Marshal(msg.CallHangup)
	case domain.InnerVoiceFrame:
		payload, err = cbor.Marshal(msg.VoiceFrame)
	case domain.InnerTyping:
		payload, err = cbor.Marshal(msg.Typing)
	case domain.InnerReadReceipt:
		payload, err = cbor.Marshal(msg.ReadReceipt)
	case domain.InnerScreenShareRequest:
		payload, err = cbor.Marshal(msg.ScreenShareRequest)
	case domain.InnerScreenShareAccept:
		payload, err = cbor.Marshal(msg.ScreenShareAccept)
	case domain.InnerScreenShareStop:
		payload, err = cbor.Marshal(msg.ScreenShareStop)
	case domain.InnerScreenFrame:
		payload, err = cbor.Marshal(msg.ScreenFrame)
	default:
		return nil, fmt.Errorf("codec: unrecognized inner kind %d", msg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: encode inner payload: %w", err)
	}

	b, err := cbor.Marshal(wireInner{Kind: uint8(msg.Kind), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("codec: encode inner message: %w", err)
	}
	return b, nil
}

// DecodeInner deserializes an inner plaintext message. A kind value this
// build does not recognize decodes to a populated Unknown field rather than
// an error, so callers can surface an "unsupported" event without dropping
// the connection.
func DecodeInner(b []byte) (domain.InnerMessage, error) {
	var wire wireInner
	if err := cbor.Unmarshal(b, &wire); err != nil {
		return domain.InnerMessage{}, fmt.Errorf("codec: decode inner message: %w", err)
	}

	kind := domain.InnerKind(wire.Kind)
	msg := domain.InnerMessage{Kind: kind}

	var err error
	switch kind {
	case domain.InnerChat:
		msg.Chat = new(domain.Chat)
		err = cbor.Unmarshal(wire.Payload, msg.Chat)
	case domain.InnerNick:
		msg.Nick = new(domain.Nick)
		err = cbor.Unmarshal(wire.Payload, msg.Nick)
	case domain.InnerIntroduceFrom:
		msg.IntroduceFrom = new(domain.IntroduceFrom)
		err = cbor.Unmarshal(wire.Payload, msg.IntroduceFrom)
	case domain.InnerFileOffer:
		msg.FileOffer = new(domain.FileOfferMsg)
		err = cbor.Unmarshal(wire.Payload, msg.FileOffer)
	case domain.InnerFileChunk:
		msg.FileChunk = new(domain.FileChunkMsg)
		err = cbor.Unmarshal(wire.Payload, msg.FileChunk)
	case domain.InnerFileAck:
		msg.FileAck = new(domain.FileAckMsg)
		err = cbor.Unmarshal(wire.Payload, msg.FileAck)
	case domain.InnerFileDone:
		msg.FileDone = new(domain.FileDoneMsg)
		err = cbor.Unmarshal(wire.Payload, msg.FileDone)
	case domain.InnerFileReject:
		msg.FileReject = new(domain.FileRejectMsg)
		err = cbor.Unmarshal(wire.Payload, msg.FileReject)
	case domain.InnerGroupInvite:
		msg.GroupInvite = new(domain.GroupInviteMsg)
		err = cbor.Unmarshal(wire.Payload, msg.GroupInvite)
	case domain.InnerGroupMemberAdd:
		msg.GroupMemberAdd = new(domain.GroupMemberAddMsg)
		err = cbor.Unmarshal(wire.Payload, msg.GroupMemberAdd)
	case domain.InnerGroupMemberLeave:
		msg.GroupMemberLeave = new(domain.GroupMemberLeaveMsg)
		err = cbor.Unmarshal(wire.Payload, msg.GroupMemberLeave)
	case domain.InnerCallOffer:
		msg.CallOffer = new(domain.CallOfferMsg)
		err = cbor.Unmarshal(wire.Payload, msg.CallOffer)
	case domain.InnerCallAccept:
		msg.CallAccept = new(domain.CallAcceptMsg)
		err = cbor.Unmarshal(wire.Payload, msg.CallAccept)
	case domain.InnerCallReject:
		msg.CallReject = new(domain.CallRejectMsg)
		err = cbor.Unmarshal(wire.Payload, msg.CallReject)
	case domain.InnerCallHangup:
		msg.CallHangup = new(domain.CallHangupMsg)
		err = cbor.Unmarshal(wire.Payload, msg.CallHangup)
	case domain.InnerVoiceFrame:
		msg.VoiceFrame = new(domain.VoiceFrameMsg)
		err = cbor.Unmarshal(wire.Payload, msg.VoiceFrame)
	case domain.InnerTyping:
		msg.Typing = new(domain.TypingMsg)
		err = cbor.Unmarshal(wire.Payload, msg.Typing)
	case domain.InnerReadReceipt:
		msg.ReadReceipt = new(domain.ReadReceiptMsg)
		err = cbor.Unmarshal(wire.Payload, msg.ReadReceipt)
	case domain.InnerScreenShareRequest:
		msg.ScreenShareRequest = new(domain.ScreenShareRequestMsg)
		err = cbor.Unmarshal(wire.Payload, msg.ScreenShareRequest)
	case domain.InnerScreenShareAccept:
		msg.ScreenShareAccept = new(domain.ScreenShareAcceptMsg)
		err = cbor.Unmarshal(wire.Payload, msg.ScreenShareAccept)
	case domain.InnerScreenShareStop:
		msg.ScreenShareStop = new(domain.ScreenShareStopMsg)
		err = cbor.Unmarshal(wire.Payload, msg.ScreenShareStop)
	case domain.InnerScreenFrame:
		msg.ScreenFrame = new(domain.ScreenFrameMsg)
		err = cbor.Unmarshal(wire.Payload, msg.ScreenFrame)
	default:
		msg.Unknown = &domain.UnknownInner{
			RawKind:    wire.Kind,
			RawPayload: append([]byte(nil), wire.Payload...),
		}
		return msg, nil
	}
	if err != nil {
		return domain.InnerMessage{}, fmt.Errorf("codec: decode inner payload (kind %s): %w", kind, err)
	}
	return msg, nil
}
