package filetransfer_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
	"wsp/internal/services/filetransfer"
)

// loopbackSession routes EncryptForPeer/SendDirect through an in-memory
// peer-keyed inbox so two Service instances can exchange inner messages
// without real cryptography or a relay.
type loopbackSession struct {
	mu    sync.Mutex
	inbox map[domain.PublicKey]chan wireMsg
	self  domain.PublicKey
}

type wireMsg struct {
	from    domain.PublicKey
	payload []byte
}

func newLoopbackSession(self domain.PublicKey, inbox map[domain.PublicKey]chan wireMsg) *loopbackSession {
	return &loopbackSession{self: self, inbox: inbox}
}

func (l *loopbackSession) Run(ctx context.Context) error                            { return nil }
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
func pumpInbox(ctx context.Context, ch chan wireMsg, svc domain.FileTransferService) {
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

// TestOfferAcceptTransfersWholeFile runs a full offer/accept/chunk/ack/done
// cycle between two services wired over in-memory inboxes and asserts the
// destination file matches the source byte-for-byte.
func TestOfferAcceptTransfersWholeFile(t *testing.T) {
	senderPub, recvPub := newTestPub(1), newTestPub(2)
	inbox := map[domain.PublicKey]chan wireMsg{
		senderPub: make(chan wireMsg, 32),
		recvPub:   make(chan wireMsg, 32),
	}
	senderSession := newLoopbackSession(senderPub, inbox)
	recvSession := newLoopbackSession(recvPub, inbox)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "photo.bin")
	content := bytes.Repeat([]byte{0xAB}, 3*domain.DefaultChunkSize+17)
	if err := os.WriteFile(srcPath, content, 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	bus := events.NewBus(32)
	sender := filetransfer.New(senderPub, senderSession, nil, "", bus, nil)
	receiver := filetransfer.New(recvPub, recvSession, nil, dstDir, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpInbox(ctx, inbox[senderPub], sender)
	go pumpInbox(ctx, inbox[recvPub], receiver)

	scope := domain.Scope{Kind: domain.ScopeDM, Peer: recvPub}
	id, err := sender.OfferFile(ctx, scope, srcPath)
	if err != nil {
		t.Fatalf("OfferFile: %v", err)
	}

	var offeredID domain.TransferID
	waitFor(t, time.Second, func() bool {
		for _, tr := range receiver.Transfers() {
			offeredID = tr.ID
			return true
		}
		return false
	})
	if offeredID != id {
		t.Fatalf("receiver saw transfer %x, want %x", offeredID, id)
	}

	if err := receiver.AcceptFile(ctx, id, dstDir); err != nil {
		t.Fatalf("AcceptFile: %v", err)
	}

	finalPath := filepath.Join(dstDir, "photo.bin")
	waitFor(t, 2*time.Second, func() bool {
		got, err := os.ReadFile(finalPath)
		return err == nil && bytes.Equal(got, content)
	})

	waitFor(t, time.Second, func() bool { return len(sender.Transfers()) == 0 })
}

func TestRejectFileRemovesPendingTransfer(t *testing.T) {
	senderPub, recvPub := newTestPub(1), newTestPub(2)
	inbox := map[domain.PublicKey]chan wireMsg{
		senderPub: make(chan wireMsg, 8),
		recvPub:   make(chan wireMsg, 8),
	}
	senderSession := newLoopbackSession(senderPub, inbox)
	recvSession := newLoopbackSession(recvPub, inbox)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "note.txt")
	if err := os.WriteFile(srcPath, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	bus := events.NewBus(8)
	sender := filetransfer.New(senderPub, senderSession, nil, "", bus, nil)
	receiver := filetransfer.New(recvPub, recvSession, nil, t.TempDir(), bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpInbox(ctx, inbox[senderPub], sender)
	go pumpInbox(ctx, inbox[recvPub], receiver)

	id, err := sender.OfferFile(ctx, domain.Scope{Kind: domain.ScopeDM, Peer: recvPub}, srcPath)
	if err != nil {
		t.Fatalf("OfferFile: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(receiver.Transfers()) == 1 })

	if err := receiver.RejectFile(ctx, id); err != nil {
		t.Fatalf("RejectFile: %v", err)
	}
	if len(receiver.Transfers()) != 0 {
		t.Fatal("receiver still tracking rejected transfer")
	}
}

func TestCancelUnknownTransferFails(t *testing.T) {
	self := newTestPub(1)
	sess := newLoopbackSession(self, map[domain.PublicKey]chan wireMsg{})
	svc := filetransfer.New(self, sess, nil, "", events.NewBus(4), nil)

	if err := svc.CancelFile(context.Background(), domain.TransferID{0xff}); err != domain.ErrUnknownTransfer {
		t.Fatalf("CancelFile on unknown id: got %v, want ErrUnknownTransfer", err)
	}
}

var _ domain.SessionService = (*loopbackSession)(nil)
