package voice

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hraban/opus"
	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
)

const (
	sampleRate = 48000
	channels   = 1
	// tickInterval is the 20ms frame cadence Opus is operated at throughout
	// the call: one encode on the way out, one jitter-buffer Pop on the way
	// in, per participant.
	tickInterval = 20 * time.Millisecond
)

// callOfferTimeout is how long an offered call waits for CallAccept
// before giving up, per spec.md §4.8/§5. A var, not a const, so tests can
// shrink it rather than waiting out the real 30s.
var callOfferTimeout = 30 * time.Second

// CaptureSource supplies one 20ms frame (960 samples at 48kHz mono) of raw
// microphone PCM per call. The terminal UI or a real device backend
// implements this; it is out of scope here per spec.md §1.
type CaptureSource interface {
	CaptureFrame() ([]int16, error)
}

// PlaybackSink receives one 20ms frame of decoded PCM for a participant,
// for a real device backend to render.
type PlaybackSink interface {
	PlayFrame(peer domain.PublicKey, pcm []int16)
}

type callState struct {
	domain.Call

	capture CaptureSource
	sink    PlaybackSink

	encoder  *opus.Encoder
	decoders map[domain.PublicKey]*opus.Decoder
	jitter   map[domain.PublicKey]*JitterBuffer
	ring     map[domain.PublicKey]*RingBuffer

	sendSeq    uint32
	cancel     context.CancelFunc
	offerTimer *time.Timer
}

// stopOfferTimer cancels the offer's 30s timeout, if one is still
// pending; call with s.mu held.
func (cs *callState) stopOfferTimer() {
	if cs.offerTimer != nil {
		cs.offerTimer.Stop()
		cs.offerTimer = nil
	}
}

// Service implements domain.VoiceService.
type Service struct {
	selfPub domain.PublicKey
	session domain.SessionService
	group   domain.GroupService // may be nil if room calls are unused
	bus     *events.Bus
	logger  *zap.Logger

	capture CaptureSource
	sink    PlaybackSink

	mu    sync.Mutex
	calls map[domain.CallID]*callState
}

// New returns a voice engine. capture/sink may be nil; a call simply
// produces silence/drops captured audio until a real backend is wired.
func New(selfPub domain.PublicKey, session domain.SessionService, group domain.GroupService, capture CaptureSource, sink PlaybackSink, bus *events.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		selfPub: selfPub,
		session: session,
		group:   group,
		bus:     bus,
		logger:  logger,
		capture: capture,
		sink:    sink,
		calls:   make(map[domain.CallID]*callState),
	}
}

// StartCall begins offering a call to scope and returns its id.
func (s *Service) StartCall(ctx context.Context, scope domain.Scope) (domain.CallID, error) {
	var id domain.CallID
	if _, err := rand.Read(id[:]); err != nil {
		return domain.CallID{}, fmt.Errorf("voice: generate call id: %w", err)
	}

	participants := []domain.PublicKey{s.selfPub}
	if scope.Kind == domain.ScopeDM {
		participants = append(participants, scope.Peer)
	}

	cs, err := s.newCallState(id, scope, domain.CallOffering, participants)
	if err != nil {
		return domain.CallID{}, err
	}
	cs.offerTimer = time.AfterFunc(callOfferTimeout, func() { s.offerTimedOut(id) })
	s.mu.Lock()
	s.calls[id] = cs
	s.mu.Unlock()

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerCallOffer, CallOffer: &domain.CallOfferMsg{CallID: id, Scope: scope}})
	if err != nil {
		return id, err
	}
	if err := s.sendToScope(ctx, scope, payload); err != nil {
		return id, err
	}
	s.emitState(id, scope, domain.CallOffering)
	return id, nil
}

// AcceptCall moves a ringing call to active and starts its audio loops.
func (s *Service) AcceptCall(ctx context.Context, id domain.CallID) error {
	s.mu.Lock()
	cs, ok := s.calls[id]
	if ok {
		cs.stopOfferTimer()
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnknownCall
	}
	if cs.State != domain.CallRinging {
		return domain.ErrInvalidCallState
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerCallAccept, CallAccept: &domain.CallAcceptMsg{CallID: id}})
	if err != nil {
		return err
	}
	if err := s.sendToScope(ctx, cs.Scope, payload); err != nil {
		return err
	}

	s.activate(ctx, id)
	return nil
}

// RejectCall declines a ringing or offering call.
func (s *Service) RejectCall(ctx context.Context, id domain.CallID) error {
	s.mu.Lock()
	cs, ok := s.calls[id]
	if ok {
		delete(s.calls, id)
		cs.stopOfferTimer()
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnknownCall
	}
	if cs.cancel != nil {
		cs.cancel()
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerCallReject, CallReject: &domain.CallRejectMsg{CallID: id}})
	if err != nil {
		return err
	}
	if err := s.sendToScope(ctx, cs.Scope, payload); err != nil {
		return err
	}
	s.emitState(id, cs.Scope, domain.CallFailed)
	return nil
}

// Hangup ends an active or pending call.
func (s *Service) Hangup(ctx context.Context, id domain.CallID) error {
	s.mu.Lock()
	cs, ok := s.calls[id]
	if ok {
		delete(s.calls, id)
		cs.stopOfferTimer()
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnknownCall
	}
	if cs.cancel != nil {
		cs.cancel()
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerCallHangup, CallHangup: &domain.CallHangupMsg{CallID: id}})
	if err != nil {
		return err
	}
	if err := s.sendToScope(ctx, cs.Scope, payload); err != nil {
		return err
	}
	s.emitState(id, cs.Scope, domain.CallEnding)
	return nil
}

// SetMuted toggles local mute; muted audio is dropped before encoding so
// no plaintext or ciphertext frame is ever produced while muted.
func (s *Service) SetMuted(ctx context.Context, id domain.CallID, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.calls[id]
	if !ok {
		return domain.ErrUnknownCall
	}
	cs.Muted = muted
	return nil
}

// Calls returns a stable-ordered snapshot of known calls.
func (s *Service) Calls() []domain.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Call, 0, len(s.calls))
	for _, cs := range s.calls {
		out = append(out, cs.Call)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// HandleInner dispatches a decrypted CallOffer/CallAccept/CallReject/
// CallHangup/VoiceFrame inner message.
func (s *Service) HandleInner(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) error {
	switch msg.Kind {
	case domain.InnerCallOffer:
		return s.handleOffer(from, msg.CallOffer)
	case domain.InnerCallAccept:
		s.activate(ctx, msg.CallAccept.CallID)
		return nil
	case domain.InnerCallReject:
		return s.handleReject(msg.CallReject)
	case domain.InnerCallHangup:
		return s.handleHangup(msg.CallHangup)
	case domain.InnerVoiceFrame:
		return s.handleVoiceFrame(from, msg.VoiceFrame)
	}
	return nil
}

func (s *Service) handleOffer(from domain.PublicKey, offer *domain.CallOfferMsg) error {
	if offer == nil {
		return nil
	}
	participants := []domain.PublicKey{s.selfPub, from}
	cs, err := s.newCallState(offer.CallID, offer.Scope, domain.CallRinging, participants)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.calls[offer.CallID] = cs
	s.mu.Unlock()
	s.emitState(offer.CallID, offer.Scope, domain.CallRinging)
	return nil
}

func (s *Service) handleReject(reject *domain.CallRejectMsg) error {
	if reject == nil {
		return nil
	}
	s.mu.Lock()
	cs, ok := s.calls[reject.CallID]
	if ok {
		delete(s.calls, reject.CallID)
	}
	s.mu.Unlock()
	if ok && cs.cancel != nil {
		cs.cancel()
	}
	if ok {
		s.emitState(reject.CallID, cs.Scope, domain.CallFailed)
	}
	return nil
}

func (s *Service) handleHangup(hangup *domain.CallHangupMsg) error {
	if hangup == nil {
		return nil
	}
	s.mu.Lock()
	cs, ok := s.calls[hangup.CallID]
	if ok {
		delete(s.calls, hangup.CallID)
	}
	s.mu.Unlock()
	if ok && cs.cancel != nil {
		cs.cancel()
	}
	if ok {
		s.emitState(hangup.CallID, cs.Scope, domain.CallEnding)
	}
	return nil
}

func (s *Service) handleVoiceFrame(from domain.PublicKey, frame *domain.VoiceFrameMsg) error {
	if frame == nil {
		return nil
	}
	s.mu.Lock()
	cs, ok := s.calls[frame.CallID]
	s.mu.Unlock()
	if !ok || cs.State != domain.CallActive {
		return nil
	}

	jb, _ := cs.jitterFor(from)
	jb.Push(frame.Seq, frame.Opus)
	return nil
}

func (cs *callState) jitterFor(peer domain.PublicKey) (*JitterBuffer, *opus.Decoder) {
	dec, ok := cs.decoders[peer]
	if !ok {
		var err error
		dec, err = opus.NewDecoder(sampleRate, channels)
		if err != nil {
			dec = nil
		}
		cs.decoders[peer] = dec
	}
	jb, ok := cs.jitter[peer]
	if !ok {
		jb = NewJitterBuffer(dec)
		cs.jitter[peer] = jb
	}
	return jb, dec
}

func (cs *callState) ringFor(peer domain.PublicKey) *RingBuffer {
	r, ok := cs.ring[peer]
	if !ok {
		r = NewRingBuffer(sampleRate) // 1 second of headroom
		cs.ring[peer] = r
	}
	return r
}

// activate transitions a call to Active and, if audio backends are
// wired, starts its capture/encode and jitter/decode/playback loops.
func (s *Service) activate(ctx context.Context, id domain.CallID) {
	s.mu.Lock()
	cs, ok := s.calls[id]
	if ok {
		cs.State = domain.CallActive
		cs.StartedAt = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	cs.cancel = cancel
	if cs.capture != nil && cs.encoder != nil {
		go s.runCaptureLoop(runCtx, id)
	}
	if cs.sink != nil {
		go s.runPlaybackLoop(runCtx, id)
	}
	s.emitState(id, cs.Scope, domain.CallActive)
}

// runCaptureLoop encodes one captured frame every 20ms and fans it out to
// every other participant, mirroring a group chat's pairwise fan-out.
func (s *Service) runCaptureLoop(ctx context.Context, id domain.CallID) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			cs, ok := s.calls[id]
			s.mu.Unlock()
			if !ok || cs.Muted {
				continue
			}
			pcm, err := cs.capture.CaptureFrame()
			if err != nil {
				continue
			}
			opusData := make([]byte, 4000)
			n, err := cs.encoder.Encode(pcm, opusData)
			if err != nil {
				s.logger.Warn("voice: opus encode failed", zap.Error(err))
				continue
			}
			cs.sendSeq++
			payload, err := codec.EncodeInner(domain.InnerMessage{
				Kind:       domain.InnerVoiceFrame,
				VoiceFrame: &domain.VoiceFrameMsg{CallID: id, Seq: cs.sendSeq, Opus: opusData[:n]},
			})
			if err != nil {
				continue
			}
			if err := s.sendToScope(ctx, cs.Scope, payload); err != nil {
				s.logger.Warn("voice: send frame failed", zap.Error(err))
			}
		}
	}
}

// runPlaybackLoop drains each participant's ring buffer at the frame
// cadence and hands PCM to the playback sink, fading to silence on
// underrun exactly like the ring buffer it's grounded on.
func (s *Service) runPlaybackLoop(ctx context.Context, id domain.CallID) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			cs, ok := s.calls[id]
			s.mu.Unlock()
			if !ok {
				continue
			}
			for _, peer := range cs.Participants {
				if peer == s.selfPub {
					continue
				}
				jb, _ := cs.jitterFor(peer)
				pcm, err := jb.Pop()
				if err != nil {
					continue
				}
				ring := cs.ringFor(peer)
				ring.TrimTo(sampleRate / 2) // bound latency to 500ms of buffered audio
				ring.Write(pcm)

				out := make([]int16, frameSamples)
				if ring.Read(out) > 0 {
					cs.sink.PlayFrame(peer, out)
				}
			}
		}
	}
}

func (s *Service) newCallState(id domain.CallID, scope domain.Scope, state domain.CallState, participants []domain.PublicKey) (*callState, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("voice: create opus encoder: %w", err)
	}
	audio := make(map[domain.PublicKey]*domain.ParticipantAudio, len(participants))
	for _, p := range participants {
		audio[p] = &domain.ParticipantAudio{PublicKey: p}
	}
	return &callState{
		Call: domain.Call{
			ID:           id,
			Scope:        scope,
			State:        state,
			Participants: participants,
			Audio:        audio,
		},
		capture:  s.capture,
		sink:     s.sink,
		encoder:  enc,
		decoders: make(map[domain.PublicKey]*opus.Decoder),
		jitter:   make(map[domain.PublicKey]*JitterBuffer),
		ring:     make(map[domain.PublicKey]*RingBuffer),
	}, nil
}

// offerTimedOut fires callOfferTimeout after an offer with no response,
// dropping the call back to idle per spec.md §4.8.
func (s *Service) offerTimedOut(id domain.CallID) {
	s.mu.Lock()
	cs, ok := s.calls[id]
	if ok {
		if cs.State != domain.CallOffering {
			s.mu.Unlock()
			return
		}
		delete(s.calls, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.emitState(id, cs.Scope, domain.CallIdle)
}

func (s *Service) emitState(id domain.CallID, scope domain.Scope, state domain.CallState) {
	s.bus.Emit(events.Event{Kind: events.KindCallStateChanged, At: time.Now(), CallID: id, CallState: state, Room: scope.Room, Peer: scope.Peer})
}

func (s *Service) sendToScope(ctx context.Context, scope domain.Scope, payload []byte) error {
	if scope.Kind == domain.ScopeDM {
		ciphertext, err := s.session.EncryptForPeer(scope.Peer, payload)
		if err != nil {
			return err
		}
		return s.session.SendDirect(ctx, scope.Peer, ciphertext)
	}
	if s.group == nil {
		return fmt.Errorf("voice: room call requested but no group manager is wired")
	}
	return s.group.Fanout(ctx, scope.Room, payload)
}

var _ domain.VoiceService = (*Service)(nil)
