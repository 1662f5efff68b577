// Package screenshare implements the DM-only screen-share supplement:
// request/accept/stop control messages plus a JPEG frame pipeline,
// grounded on original_source's screen/{mod,capture,viewer}.rs and
// tui/screen_share.rs, which SPEC_FULL.md adds back after the
// distillation dropped the feature entirely.
package screenshare

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
)

const (
	// MaxCaptureWidth bounds captured frame width; frames are downscaled
	// to fit while preserving aspect ratio, per original_source's
	// screen/mod.rs.
	MaxCaptureWidth = 1280
	// TargetFPS is the capture pacing target; the actual rate may be
	// lower if a frame takes longer than its tick to produce.
	TargetFPS = 8
	// JPEGQuality balances frame size against sharpness at
	// MaxCaptureWidth, per original_source's screen/mod.rs.
	JPEGQuality = 75

	captureInterval = time.Second / TargetFPS
)

// FrameSource captures, downscales to MaxCaptureWidth, and JPEG-encodes
// one screen frame. The terminal UI or a real OS capture backend
// implements this; it is out of scope here per spec.md §1.
type FrameSource interface {
	CaptureFrame() (width, height uint32, jpeg []byte, err error)
}

// FrameSink receives one decoded frame from a peer's screen for a real
// terminal-graphics renderer to display.
type FrameSink interface {
	ShowFrame(peer domain.PublicKey, width, height uint32, jpeg []byte, seq uint64)
}

type shareState struct {
	domain.ScreenShareStatus

	sendSeq uint64
	cancel  context.CancelFunc
}

// Service implements domain.ScreenShareService.
type Service struct {
	selfPub domain.PublicKey
	session domain.SessionService
	bus     *events.Bus
	logger  *zap.Logger

	source FrameSource
	sink   FrameSink

	mu     sync.Mutex
	shares map[domain.PublicKey]*shareState
}

// New returns a screen-share engine. source/sink may be nil; a share
// simply produces no captured frames, or drops received ones, until a
// real backend is wired.
func New(selfPub domain.PublicKey, session domain.SessionService, source FrameSource, sink FrameSink, bus *events.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		selfPub: selfPub,
		session: session,
		source:  source,
		sink:    sink,
		bus:     bus,
		logger:  logger,
		shares:  make(map[domain.PublicKey]*shareState),
	}
}

// RequestShare asks peer for permission to share the local screen,
// mirroring the original's /share command.
func (s *Service) RequestShare(ctx context.Context, peer domain.PublicKey) error {
	s.mu.Lock()
	if _, ok := s.shares[peer]; ok {
		s.mu.Unlock()
		return domain.ErrScreenShareBusy
	}
	s.shares[peer] = &shareState{ScreenShareStatus: domain.ScreenShareStatus{Peer: peer, State: domain.ScreenShareRequesting}}
	s.mu.Unlock()

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerScreenShareRequest, ScreenShareRequest: &domain.ScreenShareRequestMsg{}})
	if err != nil {
		return err
	}
	if err := s.sendToDM(ctx, peer, payload); err != nil {
		return err
	}
	s.emitState(peer, domain.ScreenShareRequesting)
	return nil
}

// AcceptShare accepts a pending inbound request from peer and starts
// receiving frames.
func (s *Service) AcceptShare(ctx context.Context, peer domain.PublicKey) error {
	s.mu.Lock()
	st, ok := s.shares[peer]
	if !ok || st.State != domain.ScreenSharePendingAccept {
		s.mu.Unlock()
		return domain.ErrNoScreenShare
	}
	st.State = domain.ScreenShareViewing
	s.mu.Unlock()

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerScreenShareAccept, ScreenShareAccept: &domain.ScreenShareAcceptMsg{Accept: true}})
	if err != nil {
		return err
	}
	if err := s.sendToDM(ctx, peer, payload); err != nil {
		return err
	}
	s.emitState(peer, domain.ScreenShareViewing)
	return nil
}

// RejectShare declines a pending inbound request from peer.
func (s *Service) RejectShare(ctx context.Context, peer domain.PublicKey) error {
	s.mu.Lock()
	st, ok := s.shares[peer]
	if !ok || st.State != domain.ScreenSharePendingAccept {
		s.mu.Unlock()
		return domain.ErrNoScreenShare
	}
	delete(s.shares, peer)
	s.mu.Unlock()

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerScreenShareAccept, ScreenShareAccept: &domain.ScreenShareAcceptMsg{Accept: false}})
	if err != nil {
		return err
	}
	if err := s.sendToDM(ctx, peer, payload); err != nil {
		return err
	}
	s.emitState(peer, domain.ScreenShareIdle)
	return nil
}

// StopShare ends whatever screen-share relationship is active with peer,
// whether the local side is sharing or viewing, and notifies the peer.
func (s *Service) StopShare(ctx context.Context, peer domain.PublicKey) error {
	s.mu.Lock()
	st, ok := s.shares[peer]
	if ok {
		delete(s.shares, peer)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrNoScreenShare
	}
	if st.cancel != nil {
		st.cancel()
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerScreenShareStop, ScreenShareStop: &domain.ScreenShareStopMsg{}})
	if err != nil {
		return err
	}
	if err := s.sendToDM(ctx, peer, payload); err != nil {
		return err
	}
	s.emitState(peer, domain.ScreenShareIdle)
	return nil
}

// Shares returns a stable-ordered snapshot of known screen-share
// relationships.
func (s *Service) Shares() []domain.ScreenShareStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScreenShareStatus, 0, len(s.shares))
	for _, st := range s.shares {
		out = append(out, st.ScreenShareStatus)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Peer[:]) < string(out[j].Peer[:]) })
	return out
}

// HandleInner dispatches a decrypted ScreenShareRequest/Accept/Stop/Frame
// inner message.
func (s *Service) HandleInner(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) error {
	switch msg.Kind {
	case domain.InnerScreenShareRequest:
		return s.handleRequest(from)
	case domain.InnerScreenShareAccept:
		return s.handleAccept(ctx, from, msg.ScreenShareAccept)
	case domain.InnerScreenShareStop:
		return s.handleStop(from)
	case domain.InnerScreenFrame:
		return s.handleFrame(from, msg.ScreenFrame)
	}
	return nil
}

func (s *Service) handleRequest(from domain.PublicKey) error {
	s.mu.Lock()
	if _, ok := s.shares[from]; ok {
		s.mu.Unlock()
		return nil // already have a relationship with this peer; ignore
	}
	s.shares[from] = &shareState{ScreenShareStatus: domain.ScreenShareStatus{Peer: from, State: domain.ScreenSharePendingAccept}}
	s.mu.Unlock()
	s.emitState(from, domain.ScreenSharePendingAccept)
	return nil
}

func (s *Service) handleAccept(ctx context.Context, from domain.PublicKey, accept *domain.ScreenShareAcceptMsg) error {
	if accept == nil {
		return nil
	}
	s.mu.Lock()
	st, ok := s.shares[from]
	if !ok || st.State != domain.ScreenShareRequesting {
		s.mu.Unlock()
		return nil
	}
	if !accept.Accept {
		delete(s.shares, from)
		s.mu.Unlock()
		s.emitState(from, domain.ScreenShareIdle)
		return nil
	}
	st.State = domain.ScreenShareSharing
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	st.cancel = cancel
	s.mu.Unlock()
	if s.source != nil {
		go s.runCaptureLoop(runCtx, from)
	}
	s.emitState(from, domain.ScreenShareSharing)
	return nil
}

func (s *Service) handleStop(from domain.PublicKey) error {
	s.mu.Lock()
	st, ok := s.shares[from]
	if ok {
		delete(s.shares, from)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if st.cancel != nil {
		st.cancel()
	}
	s.emitState(from, domain.ScreenShareIdle)
	return nil
}

func (s *Service) handleFrame(from domain.PublicKey, frame *domain.ScreenFrameMsg) error {
	if frame == nil {
		return nil
	}
	s.mu.Lock()
	st, ok := s.shares[from]
	viewing := ok && st.State == domain.ScreenShareViewing
	s.mu.Unlock()
	if !viewing || s.sink == nil {
		return nil
	}
	s.sink.ShowFrame(from, frame.Width, frame.Height, frame.JPEG, frame.Seq)
	return nil
}

// runCaptureLoop captures and sends one frame every captureInterval,
// mirroring the voice engine's fixed-cadence capture loop; drop-oldest
// backpressure is unnecessary here since each tick captures and sends
// synchronously rather than queuing through a channel.
func (s *Service) runCaptureLoop(ctx context.Context, peer domain.PublicKey) {
	ticker := time.NewTicker(captureInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			st, ok := s.shares[peer]
			s.mu.Unlock()
			if !ok || st.State != domain.ScreenShareSharing {
				continue
			}
			width, height, jpeg, err := s.source.CaptureFrame()
			if err != nil {
				s.logger.Warn("screenshare: capture failed", zap.Error(err))
				continue
			}
			s.mu.Lock()
			st.sendSeq++
			seq := st.sendSeq
			s.mu.Unlock()

			payload, err := codec.EncodeInner(domain.InnerMessage{
				Kind:        domain.InnerScreenFrame,
				ScreenFrame: &domain.ScreenFrameMsg{Width: width, Height: height, JPEG: jpeg, Seq: seq},
			})
			if err != nil {
				continue
			}
			if err := s.sendToDM(ctx, peer, payload); err != nil {
				s.logger.Warn("screenshare: send frame failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) emitState(peer domain.PublicKey, state domain.ScreenShareState) {
	s.bus.Emit(events.Event{Kind: events.KindScreenShareStateChanged, At: time.Now(), Peer: peer, ScreenShareState: state})
}

func (s *Service) sendToDM(ctx context.Context, peer domain.PublicKey, payload []byte) error {
	ciphertext, err := s.session.EncryptForPeer(peer, payload)
	if err != nil {
		return fmt.Errorf("screenshare: encrypt: %w", err)
	}
	return s.session.SendDirect(ctx, peer, ciphertext)
}

var _ domain.ScreenShareService = (*Service)(nil)
