package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/crypto"
	"wsp/internal/domain"
	"wsp/internal/events"
)

// Handlers are the other managers a decrypted inner message may need to be
// routed to. They are set once after construction (SetHandlers) rather than
// passed to New, since those managers themselves depend on this Service as
// their encrypt/send capability.
type Handlers struct {
	Group       domain.GroupService
	File        domain.FileTransferService
	Voice       domain.VoiceService
	ScreenShare domain.ScreenShareService
}

// Service implements domain.SessionService.
type Service struct {
	identity  domain.Identity
	transport domain.RelayTransport
	logger    *zap.Logger
	bus       *events.Bus
	history   domain.HistoryStore
	historyKey [32]byte

	handlersMu sync.RWMutex
	handlers   Handlers

	mu       sync.RWMutex
	nickname string
	peers    map[domain.PublicKey]*domain.Peer
	// bySession maps a peer's latest known relay session-id back to its
	// public key, so an inbound targeted DirectCipher can be attributed to
	// a Peer record without the relay ever knowing the mapping itself.
	bySession map[domain.SessionID]domain.PublicKey
}

// New returns a session manager for the local identity, communicating over
// transport. history may be nil to disable local logging.
func New(identity domain.Identity, transport domain.RelayTransport, bus *events.Bus, history domain.HistoryStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		identity:   identity,
		transport:  transport,
		logger:     logger,
		bus:        bus,
		history:    history,
		historyKey: crypto.DeriveHistoryKey(identity.Priv),
		nickname:   identity.Nickname,
		peers:      make(map[domain.PublicKey]*domain.Peer),
		bySession:  make(map[domain.SessionID]domain.PublicKey),
	}
}

// SetHandlers wires the group/file/voice managers this service dispatches
// decrypted inner messages to. Safe to call before or after Run starts.
func (s *Service) SetHandlers(h Handlers) {
	s.handlersMu.Lock()
	s.handlers = h
	s.handlersMu.Unlock()
}

// Run connects the transport, announces presence, and dispatches inbound
// envelopes until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}
	if err := s.sendBeacon(ctx); err != nil {
		s.logger.Warn("session: initial beacon failed", zap.Error(err))
	}

	for {
		env, err := s.transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("session: recv: %w", err)
		}
		s.handleEnvelope(ctx, env)
	}
}

func (s *Service) handleEnvelope(ctx context.Context, env domain.Envelope) {
	switch env.Kind {
	case domain.KindWelcome:
		s.logger.Info("session: relay session established, re-announcing presence",
			zap.String("session_id", string(env.SessionTo)))
		s.invalidatePeerSessions()
		if err := s.sendBeacon(ctx); err != nil {
			s.logger.Warn("session: re-announce beacon failed", zap.Error(err))
		}
	case domain.KindDirectCipher:
		s.handleDirect(ctx, env)
	case domain.KindRoomCipher:
		s.handleRoom(ctx, env)
	case domain.KindPong:
		// keepalive acknowledgment; nothing to do.
	default:
		s.logger.Debug("session: ignoring envelope", zap.String("kind", env.Kind.String()))
	}
}

func (s *Service) handleDirect(ctx context.Context, env domain.Envelope) {
	if env.SessionTo == "" {
		beacon, err := codec.DecodeBeacon(env.Payload)
		if err != nil {
			s.logger.Debug("session: malformed presence beacon, dropping", zap.Error(err))
			return
		}
		s.observeBeacon(beacon, env.SessionFrom)
		return
	}

	from, ok := s.peerForSession(env.SessionFrom)
	if !ok {
		s.logger.Debug("session: direct cipher from unrecognized session, dropping")
		return
	}
	plaintext, err := s.DecryptFromPeer(from, env.Payload)
	if err != nil {
		s.logger.Debug("session: dropping undecryptable direct message", zap.Error(err))
		return
	}
	msg, err := codec.DecodeInner(plaintext)
	if err != nil {
		s.logger.Debug("session: dropping malformed inner message", zap.Error(err))
		return
	}
	s.dispatchInner(ctx, from, domain.Scope{Kind: domain.ScopeDM, Peer: from}, msg)
}

func (s *Service) handleRoom(ctx context.Context, env domain.Envelope) {
	from, ok := s.peerForSession(env.SessionFrom)
	if !ok {
		s.logger.Debug("session: room cipher from unrecognized session, dropping")
		return
	}
	plaintext, err := s.DecryptFromPeer(from, env.Payload)
	if err != nil {
		s.logger.Debug("session: dropping undecryptable room message", zap.Error(err))
		return
	}
	msg, err := codec.DecodeInner(plaintext)
	if err != nil {
		s.logger.Debug("session: dropping malformed inner message", zap.Error(err))
		return
	}
	s.dispatchInner(ctx, from, domain.Scope{Kind: domain.ScopeRoom, Room: env.Room}, msg)
}

func (s *Service) dispatchInner(ctx context.Context, from domain.PublicKey, scope domain.Scope, msg domain.InnerMessage) {
	if scope.Kind == domain.ScopeRoom {
		s.ensureRoomMember(scope.Room, from)
	}
	switch msg.Kind {
	case domain.InnerChat:
		text := ""
		if msg.Chat != nil {
			text = msg.Chat.Text
		}
		ev := events.Event{Kind: events.KindMessageReceived, At: time.Now(), Peer: from, Text: text}
		if scope.Kind == domain.ScopeRoom {
			ev.Room = scope.Room
		}
		s.bus.Emit(ev)
		s.recordHistory(from, scope, false, text)
	case domain.InnerNick:
		if msg.Nick != nil {
			s.updateNickname(from, msg.Nick.Name)
		}
	case domain.InnerIntroduceFrom:
		// The peer record already exists by the time any inner message
		// decrypts successfully; nothing further to do.
	case domain.InnerTyping, domain.InnerReadReceipt:
		// Recognized but not yet surfaced to the UI as a distinct event.
	case domain.InnerFileOffer, domain.InnerFileChunk, domain.InnerFileAck, domain.InnerFileDone, domain.InnerFileReject:
		s.forwardFile(ctx, from, msg)
	case domain.InnerGroupInvite, domain.InnerGroupMemberAdd, domain.InnerGroupMemberLeave:
		s.forwardGroup(ctx, from, msg)
	case domain.InnerCallOffer, domain.InnerCallAccept, domain.InnerCallReject, domain.InnerCallHangup, domain.InnerVoiceFrame:
		s.forwardVoice(ctx, from, msg)
	case domain.InnerScreenShareRequest, domain.InnerScreenShareAccept, domain.InnerScreenShareStop, domain.InnerScreenFrame:
		s.forwardScreenShare(ctx, from, msg)
	default:
		if msg.IsUnknown() {
			s.bus.Emit(events.Event{Kind: events.KindUnsupported, At: time.Now(), Peer: from, UnknownKind: msg.Unknown.RawKind})
		}
	}
}

// ensureRoomMember lets the group manager self-heal its roster from any
// room-scoped traffic, not only the explicit GroupMemberAdd control
// message: per spec.md §4.6, a message from an unknown member in a room
// the relay's blind fan-out delivered it to is still evidence that member
// belongs.
func (s *Service) ensureRoomMember(room domain.RoomID, from domain.PublicKey) {
	s.handlersMu.RLock()
	h := s.handlers.Group
	s.handlersMu.RUnlock()
	if h == nil {
		return
	}
	h.EnsureMember(room, from)
}

func (s *Service) forwardGroup(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) {
	s.handlersMu.RLock()
	h := s.handlers.Group
	s.handlersMu.RUnlock()
	if h == nil {
		return
	}
	if err := h.HandleInner(ctx, from, msg); err != nil {
		s.logger.Warn("session: group handler failed", zap.Error(err))
		s.bus.Emit(events.Event{Kind: events.KindError, At: time.Now(), Peer: from, Err: err})
	}
}

func (s *Service) forwardFile(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) {
	s.handlersMu.RLock()
	h := s.handlers.File
	s.handlersMu.RUnlock()
	if h == nil {
		return
	}
	if err := h.HandleInner(ctx, from, msg); err != nil {
		s.logger.Warn("session: file handler failed", zap.Error(err))
		s.bus.Emit(events.Event{Kind: events.KindError, At: time.Now(), Peer: from, Err: err})
	}
}

func (s *Service) forwardVoice(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) {
	s.handlersMu.RLock()
	h := s.handlers.Voice
	s.handlersMu.RUnlock()
	if h == nil {
		return
	}
	if err := h.HandleInner(ctx, from, msg); err != nil {
		s.logger.Warn("session: voice handler failed", zap.Error(err))
		s.bus.Emit(events.Event{Kind: events.KindError, At: time.Now(), Peer: from, Err: err})
	}
}

func (s *Service) forwardScreenShare(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) {
	s.handlersMu.RLock()
	h := s.handlers.ScreenShare
	s.handlersMu.RUnlock()
	if h == nil {
		return
	}
	if err := h.HandleInner(ctx, from, msg); err != nil {
		s.logger.Warn("session: screen-share handler failed", zap.Error(err))
		s.bus.Emit(events.Event{Kind: events.KindError, At: time.Now(), Peer: from, Err: err})
	}
}

// SendChat encrypts and sends a Chat message, prefixed by an IntroduceFrom
// message the first time this peer is contacted.
func (s *Service) SendChat(ctx context.Context, peer domain.PublicKey, text string) error {
	if err := s.introduceIfNeeded(ctx, peer); err != nil {
		return err
	}
	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerChat, Chat: &domain.Chat{Text: text}})
	if err != nil {
		return err
	}
	ciphertext, err := s.EncryptForPeer(peer, payload)
	if err != nil {
		return err
	}
	if err := s.SendDirect(ctx, peer, ciphertext); err != nil {
		return err
	}
	s.recordHistory(peer, domain.Scope{Kind: domain.ScopeDM, Peer: peer}, true, text)
	return nil
}

func (s *Service) introduceIfNeeded(ctx context.Context, peer domain.PublicKey) error {
	s.mu.Lock()
	p, err := s.ensurePeerLocked(peer)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	needsIntro := p.SendCounter == 0
	s.mu.Unlock()
	if !needsIntro {
		return nil
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{
		Kind:          domain.InnerIntroduceFrom,
		IntroduceFrom: &domain.IntroduceFrom{PublicKey: s.identity.Pub},
	})
	if err != nil {
		return err
	}
	ciphertext, err := s.EncryptForPeer(peer, payload)
	if err != nil {
		return err
	}
	return s.SendDirect(ctx, peer, ciphertext)
}

// SetNickname updates the local nickname and best-effort announces it to
// every peer with a known session.
func (s *Service) SetNickname(ctx context.Context, nickname string) error {
	s.mu.Lock()
	s.nickname = nickname
	targets := make([]domain.PublicKey, 0, len(s.peers))
	for pk, p := range s.peers {
		if p.SessionID != "" {
			targets = append(targets, pk)
		}
	}
	s.mu.Unlock()

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerNick, Nick: &domain.Nick{Name: nickname}})
	if err != nil {
		return err
	}
	for _, pk := range targets {
		ciphertext, err := s.EncryptForPeer(pk, payload)
		if err != nil {
			s.logger.Warn("session: encrypt nickname announce failed", zap.Error(err))
			continue
		}
		if err := s.SendDirect(ctx, pk, ciphertext); err != nil {
			s.logger.Warn("session: send nickname announce failed", zap.Error(err))
		}
	}
	return nil
}

// Peers returns a stable-ordered snapshot of the current Peer table.
func (s *Service) Peers() []domain.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublicKey.Less(out[j].PublicKey) })
	return out
}

// Peer returns the Peer record for pk, if known.
func (s *Service) Peer(pk domain.PublicKey) (domain.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[pk]
	if !ok {
		return domain.Peer{}, false
	}
	return *p, true
}

// SafetyNumber returns pk's out-of-band verification code, cached from
// first contact.
func (s *Service) SafetyNumber(pk domain.PublicKey) (domain.SafetyNumber, error) {
	p, ok := s.Peer(pk)
	if !ok {
		return domain.SafetyNumber{}, domain.ErrUnknownPeer
	}
	return p.FirstSeenSafetyNumber, nil
}

// EncryptForPeer seals plaintext for pk, deriving its shared secret on
// first use and advancing its send counter.
func (s *Service) EncryptForPeer(pk domain.PublicKey, plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.ensurePeerLocked(pk)
	if err != nil {
		return nil, err
	}
	if p.SendCounter == crypto.MaxCounter {
		return nil, domain.ErrNonceExhausted
	}
	dir := directionByte(s.identity.Pub, pk)
	ciphertext, err := crypto.Seal(p.SharedSecret, dir, p.SendCounter, plaintext)
	if err != nil {
		return nil, err
	}
	p.SendCounter++
	return ciphertext, nil
}

// DecryptFromPeer opens ciphertext received from pk, enforcing strict
// nonce monotonicity: any counter other than the expected next value is
// treated as a replay and rejected.
func (s *Service) DecryptFromPeer(pk domain.PublicKey, ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[pk]
	if !ok {
		return nil, domain.ErrUnknownPeer
	}
	dir := directionByte(pk, s.identity.Pub)
	plaintext, err := crypto.Open(p.SharedSecret, dir, p.RecvCounter, ciphertext)
	if err != nil {
		return nil, domain.ErrReplay
	}
	p.RecvCounter++
	p.LastSeen = time.Now()
	return plaintext, nil
}

// SendDirect wraps an already-encrypted payload in a DirectCipher envelope
// addressed to pk's last-known session and transmits it.
func (s *Service) SendDirect(ctx context.Context, pk domain.PublicKey, payload []byte) error {
	p, ok := s.Peer(pk)
	if !ok || p.SessionID == "" {
		return domain.ErrUnknownPeer
	}
	env := domain.Envelope{
		Kind:        domain.KindDirectCipher,
		SessionFrom: s.transport.SessionID(),
		SessionTo:   p.SessionID,
		Payload:     payload,
	}
	return s.transport.Send(ctx, env)
}

func (s *Service) sendBeacon(ctx context.Context) error {
	s.mu.RLock()
	nickname := s.nickname
	s.mu.RUnlock()

	payload, err := codec.EncodeBeacon(domain.PresenceBeacon{PublicKey: s.identity.Pub, Nickname: nickname})
	if err != nil {
		return err
	}
	env := domain.Envelope{
		Kind:        domain.KindDirectCipher,
		SessionFrom: s.transport.SessionID(),
		Payload:     payload,
	}
	return s.transport.Send(ctx, env)
}

func (s *Service) observeBeacon(beacon domain.PresenceBeacon, fromSession domain.SessionID) {
	s.mu.Lock()
	p, err := s.ensurePeerLocked(beacon.PublicKey)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("session: failed to derive shared secret for beacon", zap.Error(err))
		return
	}
	wasNew := p.SessionID == "" && p.Nickname == "" && p.LastSeen.IsZero()
	p.SessionID = fromSession
	p.Nickname = beacon.Nickname
	p.LastSeen = time.Now()
	s.bySession[fromSession] = beacon.PublicKey
	s.mu.Unlock()

	if wasNew {
		s.bus.Emit(events.Event{Kind: events.KindPeerJoined, At: time.Now(), Peer: beacon.PublicKey, Nickname: beacon.Nickname})
	}
}

func (s *Service) updateNickname(pk domain.PublicKey, nickname string) {
	s.mu.Lock()
	p, ok := s.peers[pk]
	if ok {
		p.Nickname = nickname
	}
	s.mu.Unlock()
	if ok {
		s.bus.Emit(events.Event{Kind: events.KindNicknameChanged, At: time.Now(), Peer: pk, Nickname: nickname})
	}
}

// invalidatePeerSessions clears every peer's cached session-id after our
// own reconnect: the relay may have restarted or dropped every connection,
// so a stale session-id would otherwise route sends to a socket that is no
// longer that peer. Fresh beacons repopulate it.
func (s *Service) invalidatePeerSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		p.SessionID = ""
	}
	s.bySession = make(map[domain.SessionID]domain.PublicKey)
}

func (s *Service) peerForSession(id domain.SessionID) (domain.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.bySession[id]
	return pk, ok
}

// ensurePeerLocked returns pk's Peer record, creating it (deriving its
// shared secret) if this is the first contact. Callers must hold s.mu.
func (s *Service) ensurePeerLocked(pk domain.PublicKey) (*domain.Peer, error) {
	if p, ok := s.peers[pk]; ok {
		return p, nil
	}
	secret, err := crypto.SharedSecret(s.identity.Priv, s.identity.Pub, pk)
	if err != nil {
		return nil, fmt.Errorf("session: derive shared secret: %w", err)
	}
	p := &domain.Peer{
		PublicKey:             pk,
		SharedSecret:          secret,
		FirstSeenSafetyNumber: crypto.SafetyNumber(s.identity.Pub, pk),
	}
	s.peers[pk] = p
	return p, nil
}

// LoadHistory decrypts every record in the local history file, in append
// order. It returns nil if no history store was configured.
func (s *Service) LoadHistory() ([]domain.HistoryLine, error) {
	if s.history == nil {
		return nil, nil
	}
	records, err := s.history.LoadRecords()
	if err != nil {
		return nil, err
	}

	lines := make([]domain.HistoryLine, 0, len(records))
	for _, rec := range records {
		sealed := append(append([]byte(nil), rec.Ciphertext...), rec.Tag[:]...)
		raw, err := crypto.OpenRandom(s.historyKey, rec.Nonce, sealed)
		if err != nil {
			s.logger.Warn("session: decrypt history record failed", zap.Error(err))
			continue
		}
		entry, err := codec.DecodeHistoryEntry(raw)
		if err != nil {
			s.logger.Warn("session: decode history entry failed", zap.Error(err))
			continue
		}
		lines = append(lines, domain.HistoryLine{At: rec.Timestamp, Entry: entry})
	}
	return lines, nil
}

func (s *Service) recordHistory(peer domain.PublicKey, scope domain.Scope, outbound bool, text string) {
	if s.history == nil {
		return
	}
	entry := domain.HistoryEntry{Peer: peer, Outbound: outbound, Text: text}
	if scope.Kind == domain.ScopeRoom {
		entry.Room = scope.Room
	}
	raw, err := codec.EncodeHistoryEntry(entry)
	if err != nil {
		s.logger.Warn("session: encode history entry failed", zap.Error(err))
		return
	}
	nonce, sealed, err := crypto.SealRandom(s.historyKey, raw)
	if err != nil {
		s.logger.Warn("session: seal history entry failed", zap.Error(err))
		return
	}
	tagStart := len(sealed) - 16
	rec := domain.HistoryRecord{Timestamp: time.Now()}
	copy(rec.Nonce[:], nonce[:])
	copy(rec.Tag[:], sealed[tagStart:])
	rec.Ciphertext = sealed[:tagStart]
	if err := s.history.AppendRecord(rec); err != nil {
		s.logger.Warn("session: append history record failed", zap.Error(err))
	}
}

// directionByte reports the AEAD direction byte for a message sent by
// sender to recipient: 0 if sender sorts before recipient, 1 otherwise.
// It is a pure function of the pair, so both ends of a session compute the
// same byte for the same logical direction regardless of local role.
func directionByte(sender, recipient domain.PublicKey) byte {
	if sender.Less(recipient) {
		return 0
	}
	return 1
}

var _ domain.SessionService = (*Service)(nil)
