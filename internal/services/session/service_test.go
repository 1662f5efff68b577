package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wsp/internal/crypto"
	"wsp/internal/domain"
	"wsp/internal/events"
	"wsp/internal/services/session"
	"wsp/internal/store"
)

// loopbackTransport is a domain.RelayTransport that exchanges envelopes
// in-process with its paired end, standing in for a real relay connection.
type loopbackTransport struct {
	self     domain.SessionID
	outbound chan domain.Envelope
	inbound  chan domain.Envelope
}

func newLoopbackPair(a, b domain.SessionID) (*loopbackTransport, *loopbackTransport) {
	aToB := make(chan domain.Envelope, 32)
	bToA := make(chan domain.Envelope, 32)
	return &loopbackTransport{self: a, outbound: aToB, inbound: bToA},
		&loopbackTransport{self: b, outbound: bToA, inbound: aToB}
}

func (t *loopbackTransport) Connect(ctx context.Context) error { return nil }
func (t *loopbackTransport) SessionID() domain.SessionID        { return t.self }

func (t *loopbackTransport) Send(ctx context.Context, env domain.Envelope) error {
	env.SessionFrom = t.self
	select {
	case t.outbound <- env:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (t *loopbackTransport) Recv(ctx context.Context) (domain.Envelope, error) {
	select {
	case env := <-t.inbound:
		return env, nil
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	}
}

func (t *loopbackTransport) Close() error { return nil }

// fakeGroup is a domain.GroupService stub that only tracks EnsureMember
// calls, for asserting that room-scoped dispatch self-heals the roster.
type fakeGroup struct {
	mu      sync.Mutex
	ensured []struct {
		room domain.RoomID
		from domain.PublicKey
	}
}

func (g *fakeGroup) CreateRoom(ctx context.Context, name string) (domain.Room, error) {
	return domain.Room{}, nil
}
func (g *fakeGroup) InviteToRoom(ctx context.Context, room domain.RoomID, peer domain.PublicKey) error {
	return nil
}
func (g *fakeGroup) AcceptInvite(ctx context.Context, invite domain.GroupInviteMsg) (domain.Room, error) {
	return domain.Room{}, nil
}
func (g *fakeGroup) LeaveRoom(ctx context.Context, room domain.RoomID) error { return nil }
func (g *fakeGroup) Fanout(ctx context.Context, room domain.RoomID, plaintext []byte) error {
	return nil
}
func (g *fakeGroup) Rooms() []domain.Room                            { return nil }
func (g *fakeGroup) Room(id domain.RoomID) (domain.Room, bool)       { return domain.Room{}, false }
func (g *fakeGroup) EnsureMember(room domain.RoomID, from domain.PublicKey) {
	g.mu.Lock()
	g.ensured = append(g.ensured, struct {
		room domain.RoomID
		from domain.PublicKey
	}{room, from})
	g.mu.Unlock()
}
func (g *fakeGroup) HandleInner(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) error {
	return nil
}

func (g *fakeGroup) ensuredCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ensured)
}

func newTestIdentity(t *testing.T) domain.Identity {
	t.Helper()
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	return domain.Identity{Priv: priv, Pub: pub}
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

func TestSendChatDeliversMessageReceivedEvent(t *testing.T) {
	idA, idB := newTestIdentity(t), newTestIdentity(t)
	transportA, transportB := newLoopbackPair("sess-a", "sess-b")
	busA, busB := events.NewBus(16), events.NewBus(16)

	svcA := session.New(idA, transportA, busA, nil, nil)
	svcB := session.New(idB, transportB, busB, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go svcA.Run(ctx)
	go svcB.Run(ctx)

	waitFor(t, time.Second, func() bool { return len(svcA.Peers()) == 1 })
	waitFor(t, time.Second, func() bool { return len(svcB.Peers()) == 1 })

	if err := svcA.SendChat(ctx, idB.Pub, "hello there"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}

	select {
	case ev := <-busB.Events():
		if ev.Kind != events.KindMessageReceived {
			t.Fatalf("got event kind %v, want KindMessageReceived", ev.Kind)
		}
		if ev.Peer != idA.Pub {
			t.Fatalf("event peer = %x, want %x", ev.Peer, idA.Pub)
		}
		if ev.Text != "hello there" {
			t.Fatalf("event text = %q, want %q", ev.Text, "hello there")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for MessageReceived event")
	}
}

func TestSafetyNumberMatchesBothDirections(t *testing.T) {
	idA, idB := newTestIdentity(t), newTestIdentity(t)
	transportA, transportB := newLoopbackPair("sess-a", "sess-b")
	busA, busB := events.NewBus(16), events.NewBus(16)

	svcA := session.New(idA, transportA, busA, nil, nil)
	svcB := session.New(idB, transportB, busB, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go svcA.Run(ctx)
	go svcB.Run(ctx)

	waitFor(t, time.Second, func() bool { return len(svcA.Peers()) == 1 })
	waitFor(t, time.Second, func() bool { return len(svcB.Peers()) == 1 })

	numA, err := svcA.SafetyNumber(idB.Pub)
	if err != nil {
		t.Fatalf("SafetyNumber(A): %v", err)
	}
	numB, err := svcB.SafetyNumber(idA.Pub)
	if err != nil {
		t.Fatalf("SafetyNumber(B): %v", err)
	}
	if numA.Digits != numB.Digits {
		t.Fatalf("safety numbers diverged: a=%s b=%s", numA.Digits, numB.Digits)
	}
}

func TestUnknownPeerOperationsFail(t *testing.T) {
	idA := newTestIdentity(t)
	transportA, _ := newLoopbackPair("sess-a", "sess-b")
	svcA := session.New(idA, transportA, events.NewBus(4), nil, nil)

	stranger := newTestIdentity(t).Pub
	if _, err := svcA.SafetyNumber(stranger); err != domain.ErrUnknownPeer {
		t.Fatalf("SafetyNumber for unknown peer: got %v, want ErrUnknownPeer", err)
	}
	if err := svcA.SendDirect(context.Background(), stranger, []byte("x")); err != domain.ErrUnknownPeer {
		t.Fatalf("SendDirect to unknown peer: got %v, want ErrUnknownPeer", err)
	}
}

func TestLoadHistoryRoundTripsOutboundAndInboundLines(t *testing.T) {
	idA, idB := newTestIdentity(t), newTestIdentity(t)
	transportA, transportB := newLoopbackPair("sess-a", "sess-b")
	busA, busB := events.NewBus(16), events.NewBus(16)

	histA := store.NewHistoryStore(filepath.Join(t.TempDir(), "history-a"))
	svcA := session.New(idA, transportA, busA, histA, nil)
	svcB := session.New(idB, transportB, busB, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go svcA.Run(ctx)
	go svcB.Run(ctx)

	waitFor(t, time.Second, func() bool { return len(svcA.Peers()) == 1 })
	waitFor(t, time.Second, func() bool { return len(svcB.Peers()) == 1 })

	if err := svcA.SendChat(ctx, idB.Pub, "outbound line"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if err := svcB.SendChat(ctx, idA.Pub, "inbound line"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		lines, err := svcA.LoadHistory()
		return err == nil && len(lines) == 2
	})

	lines, err := svcA.LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	var sawOutbound, sawInbound bool
	for _, l := range lines {
		switch l.Entry.Text {
		case "outbound line":
			sawOutbound = l.Entry.Outbound
		case "inbound line":
			sawInbound = !l.Entry.Outbound
		}
	}
	if !sawOutbound || !sawInbound {
		t.Fatalf("history missing expected lines: %+v", lines)
	}
}

func TestLoadHistoryWithoutStoreReturnsEmpty(t *testing.T) {
	idA := newTestIdentity(t)
	transportA, _ := newLoopbackPair("sess-a", "sess-b")
	svcA := session.New(idA, transportA, events.NewBus(4), nil, nil)

	lines, err := svcA.LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("LoadHistory with no store = %v, want empty", lines)
	}
}

func TestRoomScopedMessageFromUnknownMemberSelfHealsRoster(t *testing.T) {
	idA := newTestIdentity(t)
	transportA, _ := newLoopbackPair("sess-a", "sess-b")
	svcA := session.New(idA, transportA, events.NewBus(4), nil, nil)

	group := &fakeGroup{}
	svcA.SetHandlers(session.Handlers{Group: group})

	stranger := newTestIdentity(t).Pub
	room := domain.RoomID{0x42}
	svcA.DispatchInnerForTest(context.Background(), stranger, domain.Scope{Kind: domain.ScopeRoom, Room: room},
		domain.InnerMessage{Kind: domain.InnerChat, Chat: &domain.Chat{Text: "hi from a stranger"}})

	if got := group.ensuredCalls(); got != 1 {
		t.Fatalf("EnsureMember called %d times, want 1", got)
	}
	group.mu.Lock()
	defer group.mu.Unlock()
	if len(group.ensured) != 1 || group.ensured[0].room != room || group.ensured[0].from != stranger {
		t.Fatalf("EnsureMember called with unexpected args: %+v", group.ensured)
	}
}

var _ domain.RelayTransport = (*loopbackTransport)(nil)
var _ domain.GroupService = (*fakeGroup)(nil)
