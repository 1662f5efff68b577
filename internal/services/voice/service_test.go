package voice_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
	"wsp/internal/services/voice"
)

type wireMsg struct {
	from    domain.PublicKey
	payload []byte
}

// loopbackSession is a minimal domain.SessionService that shuttles
// EncryptForPeer/SendDirect payloads through in-memory peer inboxes, the
// same pattern the file-transfer engine's tests use to exercise a service
// without a real relay or cryptography.
type loopbackSession struct {
	mu    sync.Mutex
	inbox map[domain.PublicKey]chan wireMsg
	self  domain.PublicKey
}

func newLoopbackSession(self domain.PublicKey, inbox map[domain.PublicKey]chan wireMsg) *loopbackSession {
	return &loopbackSession{self: self, inbox: inbox}
}

func (l *loopbackSession) Run(ctx context.Context) error { return nil }
func (l *loopbackSession) SendChat(ctx context.Context, peer domain.PublicKey, text string) error {
	return nil
}
func (l *loopbackSession) SetNickname(ctx context.Context, nickname string) error { return nil }
func (l *loopbackSession) Peers() []domain.Peer                                  { return nil }
func (l *loopbackSession) Peer(pk domain.PublicKey) (domain.Peer, bool)           { return domain.Peer{}, false }
func (l *loopbackSession) SafetyNumber(pk domain.PublicKey) (domain.SafetyNumber, error) {
	return domain.SafetyNumber{}, nil
}
func (l *loopbackSession) EncryptForPeer(pk domain.PublicKey, plaintext []byte) ([]byte, error) {
	return append([]byte{}, plaintext...), nil
}
func (l *loopbackSession) DecryptFromPeer(pk domain.PublicKey, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}
func (l *loopbackSession) SendDirect(ctx context.Context, pk domain.PublicKey, payload []byte) error {
	l.mu.Lock()
	ch := l.inbox[pk]
	l.mu.Unlock()
	if ch == nil {
		return domain.ErrUnknownPeer
	}
	ch <- wireMsg{from: l.self, payload: payload}
	return nil
}


func (l *loopbackSession) LoadHistory() ([]domain.HistoryLine, error) { return nil, nil }
func pumpInbox(ctx context.Context, ch chan wireMsg, svc domain.VoiceService) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ch:
			msg, err := codec.DecodeInner(m.payload)
			if err != nil {
				continue
			}
			_ = svc.HandleInner(ctx, m.from, msg)
		}
	}
}

func newTestPub(b byte) domain.PublicKey {
	var pk domain.PublicKey
	pk[0] = b
	return pk
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func callState(t *testing.T, svc domain.VoiceService, id domain.CallID) (domain.Call, bool) {
	t.Helper()
	for _, c := range svc.Calls() {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Call{}, false
}

func TestStartCallRingsAndAcceptActivatesBothSides(t *testing.T) {
	callerPub, calleePub := newTestPub(1), newTestPub(2)
	inbox := map[domain.PublicKey]chan wireMsg{
		callerPub: make(chan wireMsg, 8),
		calleePub: make(chan wireMsg, 8),
	}
	callerSession := newLoopbackSession(callerPub, inbox)
	calleeSession := newLoopbackSession(calleePub, inbox)

	caller := voice.New(callerPub, callerSession, nil, nil, nil, events.NewBus(8), nil)
	callee := voice.New(calleePub, calleeSession, nil, nil, nil, events.NewBus(8), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpInbox(ctx, inbox[callerPub], caller)
	go pumpInbox(ctx, inbox[calleePub], callee)

	id, err := caller.StartCall(ctx, domain.Scope{Kind: domain.ScopeDM, Peer: calleePub})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		c, ok := callState(t, callee, id)
		return ok && c.State == domain.CallRinging
	})

	if err := callee.AcceptCall(ctx, id); err != nil {
		t.Fatalf("AcceptCall: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		c, ok := callState(t, caller, id)
		return ok && c.State == domain.CallActive
	})
	c, ok := callState(t, callee, id)
	if !ok || c.State != domain.CallActive {
		t.Fatalf("callee call state = %+v, want Active", c)
	}
}

func TestAcceptCallOnUnknownCallFails(t *testing.T) {
	self := newTestPub(1)
	sess := newLoopbackSession(self, map[domain.PublicKey]chan wireMsg{})
	svc := voice.New(self, sess, nil, nil, nil, events.NewBus(4), nil)

	if err := svc.AcceptCall(context.Background(), domain.CallID{0x01}); err != domain.ErrUnknownCall {
		t.Fatalf("AcceptCall on unknown id: got %v, want ErrUnknownCall", err)
	}
}

func TestHangupRemovesCallAndNotifiesPeer(t *testing.T) {
	callerPub, calleePub := newTestPub(1), newTestPub(2)
	inbox := map[domain.PublicKey]chan wireMsg{
		callerPub: make(chan wireMsg, 8),
		calleePub: make(chan wireMsg, 8),
	}
	caller := voice.New(callerPub, newLoopbackSession(callerPub, inbox), nil, nil, nil, events.NewBus(8), nil)
	callee := voice.New(calleePub, newLoopbackSession(calleePub, inbox), nil, nil, nil, events.NewBus(8), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpInbox(ctx, inbox[callerPub], caller)
	go pumpInbox(ctx, inbox[calleePub], callee)

	id, err := caller.StartCall(ctx, domain.Scope{Kind: domain.ScopeDM, Peer: calleePub})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		_, ok := callState(t, callee, id)
		return ok
	})

	if err := caller.Hangup(ctx, id); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		_, ok := callState(t, callee, id)
		return !ok
	})
	if len(caller.Calls()) != 0 {
		t.Fatal("caller still tracking a call after Hangup")
	}
}

func TestStartCallTimesOutToIdleWithoutResponse(t *testing.T) {
	orig := voice.SetCallOfferTimeoutForTest(20 * time.Millisecond)
	defer voice.SetCallOfferTimeoutForTest(orig)

	callerPub, calleePub := newTestPub(1), newTestPub(2)
	inbox := map[domain.PublicKey]chan wireMsg{
		callerPub: make(chan wireMsg, 8),
		calleePub: make(chan wireMsg, 8),
	}
	bus := events.NewBus(8)
	caller := voice.New(callerPub, newLoopbackSession(callerPub, inbox), nil, nil, nil, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Nobody is pumping calleePub's inbox, so the offer is never accepted.

	id, err := caller.StartCall(ctx, domain.Scope{Kind: domain.ScopeDM, Peer: calleePub})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		_, ok := callState(t, caller, id)
		return !ok
	})

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-bus.Events():
			if ev.Kind == events.KindCallStateChanged && ev.CallID == id {
				if ev.CallState != domain.CallIdle {
					t.Fatalf("got CallStateChanged state %v, want CallIdle", ev.CallState)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for CallStateChanged/CallIdle")
		}
	}
}

var _ domain.SessionService = (*loopbackSession)(nil)
