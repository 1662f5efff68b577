package group_test

import (
	"context"
	"sync"
	"testing"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
	"wsp/internal/services/group"
)

// fakeSession is a minimal domain.SessionService that treats EncryptForPeer
// as an identity transform tagged with the recipient, so tests can assert
// exactly which peers a fan-out targeted without real cryptography.
type fakeSession struct {
	mu   sync.Mutex
	sent []domain.PublicKey
}

func (f *fakeSession) Run(ctx context.Context) error { return nil }
func (f *fakeSession) SendChat(ctx context.Context, peer domain.PublicKey, text string) error {
	return nil
}
func (f *fakeSession) SetNickname(ctx context.Context, nickname string) error { return nil }
func (f *fakeSession) Peers() []domain.Peer                                   { return nil }
func (f *fakeSession) Peer(pk domain.PublicKey) (domain.Peer, bool)           { return domain.Peer{}, false }
func (f *fakeSession) SafetyNumber(pk domain.PublicKey) (domain.SafetyNumber, error) {
	return domain.SafetyNumber{}, nil
}
func (f *fakeSession) EncryptForPeer(pk domain.PublicKey, plaintext []byte) ([]byte, error) {
	f.mu.Lock()
	f.sent = append(f.sent, pk)
	f.mu.Unlock()
	return append([]byte{}, plaintext...), nil
}
func (f *fakeSession) DecryptFromPeer(pk domain.PublicKey, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}
func (f *fakeSession) SendDirect(ctx context.Context, pk domain.PublicKey, payload []byte) error {
	return nil
}


func (f *fakeSession) LoadHistory() ([]domain.HistoryLine, error) { return nil, nil }
type fakeTransport struct {
	mu   sync.Mutex
	sent []domain.Envelope
}

func (t *fakeTransport) Connect(ctx context.Context) error      { return nil }
func (t *fakeTransport) SessionID() domain.SessionID             { return "sess-self" }
func (t *fakeTransport) Recv(ctx context.Context) (domain.Envelope, error) {
	<-ctx.Done()
	return domain.Envelope{}, ctx.Err()
}
func (t *fakeTransport) Close() error { return nil }
func (t *fakeTransport) Send(ctx context.Context, env domain.Envelope) error {
	t.mu.Lock()
	t.sent = append(t.sent, env)
	t.mu.Unlock()
	return nil
}

func newTestPub(b byte) domain.PublicKey {
	var pk domain.PublicKey
	pk[0] = b
	return pk
}

func TestCreateRoomIncludesSelfAndJoinsRelay(t *testing.T) {
	self := newTestPub(1)
	transport := &fakeTransport{}
	svc := group.New(self, &fakeSession{}, transport, nil, events.NewBus(8), nil)

	room, err := svc.CreateRoom(context.Background(), "friends")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if !room.HasMember(self) {
		t.Fatal("created room does not include self")
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.sent) != 1 || transport.sent[0].Kind != domain.KindJoinRoom {
		t.Fatalf("expected one JoinRoom envelope, got %+v", transport.sent)
	}
}

func TestFanoutSkipsSelfAndTargetsEveryOtherMember(t *testing.T) {
	self, b, c := newTestPub(1), newTestPub(2), newTestPub(3)
	transport := &fakeTransport{}
	session := &fakeSession{}
	svc := group.New(self, session, transport, nil, events.NewBus(8), nil)

	room, err := svc.CreateRoom(context.Background(), "friends")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	room.AddMember(b)
	room.AddMember(c)
	// Simulate the two joins reconciling into the service's own state via
	// GroupMemberAdd, matching how AcceptInvite peers announce themselves.
	if err := svc.HandleInner(context.Background(), b, domain.InnerMessage{
		Kind:           domain.InnerGroupMemberAdd,
		GroupMemberAdd: &domain.GroupMemberAddMsg{RoomID: room.ID, PublicKey: b},
	}); err != nil {
		t.Fatalf("HandleInner(add b): %v", err)
	}
	if err := svc.HandleInner(context.Background(), c, domain.InnerMessage{
		Kind:           domain.InnerGroupMemberAdd,
		GroupMemberAdd: &domain.GroupMemberAddMsg{RoomID: room.ID, PublicKey: c},
	}); err != nil {
		t.Fatalf("HandleInner(add c): %v", err)
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerChat, Chat: &domain.Chat{Text: "hi all"}})
	if err != nil {
		t.Fatalf("EncodeInner: %v", err)
	}
	if err := svc.Fanout(context.Background(), room.ID, payload); err != nil {
		t.Fatalf("Fanout: %v", err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.sent) != 2 {
		t.Fatalf("expected 2 pairwise encryptions, got %d: %+v", len(session.sent), session.sent)
	}
	for _, pk := range session.sent {
		if pk == self {
			t.Fatal("fan-out encrypted for self")
		}
	}
}

func TestLeaveRoomRemovesLocalState(t *testing.T) {
	self := newTestPub(1)
	transport := &fakeTransport{}
	svc := group.New(self, &fakeSession{}, transport, nil, events.NewBus(8), nil)

	room, err := svc.CreateRoom(context.Background(), "temp")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := svc.LeaveRoom(context.Background(), room.ID); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if _, ok := svc.Room(room.ID); ok {
		t.Fatal("room still present after LeaveRoom")
	}
}

func TestAcceptInviteAddsSelfAndPersistedName(t *testing.T) {
	self, inviter := newTestPub(1), newTestPub(9)
	transport := &fakeTransport{}
	svc := group.New(self, &fakeSession{}, transport, nil, events.NewBus(8), nil)

	invite := domain.GroupInviteMsg{RoomID: domain.RoomID{0xaa}, Name: "crew", Members: []domain.PublicKey{inviter}}
	room, err := svc.AcceptInvite(context.Background(), invite)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if room.Name != "crew" || !room.HasMember(self) || !room.HasMember(inviter) {
		t.Fatalf("unexpected room after accept: %+v", room)
	}
}

func TestEnsureMemberAddsUnknownSenderToRoster(t *testing.T) {
	self, stranger := newTestPub(1), newTestPub(7)
	transport := &fakeTransport{}
	svc := group.New(self, &fakeSession{}, transport, nil, events.NewBus(8), nil)

	room, err := svc.CreateRoom(context.Background(), "friends")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.HasMember(stranger) {
		t.Fatal("stranger already a member before EnsureMember")
	}

	svc.EnsureMember(room.ID, stranger)

	updated, ok := svc.Room(room.ID)
	if !ok {
		t.Fatal("room disappeared")
	}
	if !updated.HasMember(stranger) {
		t.Fatal("EnsureMember did not add the unknown sender to the roster")
	}
}

func TestEnsureMemberIsNoOpForKnownMember(t *testing.T) {
	self, known := newTestPub(1), newTestPub(2)
	transport := &fakeTransport{}
	svc := group.New(self, &fakeSession{}, transport, nil, events.NewBus(8), nil)

	room, err := svc.CreateRoom(context.Background(), "friends")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := svc.HandleInner(context.Background(), known, domain.InnerMessage{
		Kind:           domain.InnerGroupMemberAdd,
		GroupMemberAdd: &domain.GroupMemberAddMsg{RoomID: room.ID, PublicKey: known},
	}); err != nil {
		t.Fatalf("HandleInner(add known): %v", err)
	}

	svc.EnsureMember(room.ID, known) // must not panic or duplicate

	updated, _ := svc.Room(room.ID)
	count := 0
	for _, m := range updated.Members {
		if m == known {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("known member appears %d times after EnsureMember, want 1", count)
	}
}

var _ domain.SessionService = (*fakeSession)(nil)
var _ domain.RelayTransport = (*fakeTransport)(nil)
