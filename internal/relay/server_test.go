package relay_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/relay"
)

func dial(t *testing.T, wsURL string) (*websocket.Conn, domain.SessionID) {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	env, err := codec.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if env.Kind != domain.KindWelcome {
		t.Fatalf("expected Welcome, got %s", env.Kind)
	}
	return ws, env.SessionTo
}

func TestDirectCipherForwardsToTarget(t *testing.T) {
	srv := relay.NewServer(nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	a, aSID := dial(t, wsURL)
	defer a.Close()
	b, bSID := dial(t, wsURL)
	defer b.Close()

	msg, err := codec.EncodeEnvelope(domain.Envelope{
		Kind:        domain.KindDirectCipher,
		SessionFrom: aSID,
		SessionTo:   bSID,
		Payload:     []byte("opaque"),
	})
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	if err := a.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("b did not receive forwarded message: %v", err)
	}
	got, err := codec.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode forwarded: %v", err)
	}
	if string(got.Payload) != "opaque" {
		t.Fatalf("payload mismatch: got %q", got.Payload)
	}
}

func TestDirectCipherToMissingTargetDropsSilently(t *testing.T) {
	srv := relay.NewServer(nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	a, aSID := dial(t, wsURL)
	defer a.Close()

	msg, _ := codec.EncodeEnvelope(domain.Envelope{
		Kind:        domain.KindDirectCipher,
		SessionFrom: aSID,
		SessionTo:   "nonexistent",
		Payload:     []byte("x"),
	})
	if err := a.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	// No response should arrive; a short deadline confirms silent drop.
	a.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := a.ReadMessage(); err == nil {
		t.Fatal("expected no message for missing target, got one")
	}
}

func TestRoomCipherFansOutExceptSender(t *testing.T) {
	srv := relay.NewServer(nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	a, _ := dial(t, wsURL)
	defer a.Close()
	b, _ := dial(t, wsURL)
	defer b.Close()
	c, _ := dial(t, wsURL)
	defer c.Close()

	room := domain.RoomID{7}
	for _, conn := range []*websocket.Conn{a, b, c} {
		join, _ := codec.EncodeEnvelope(domain.Envelope{Kind: domain.KindJoinRoom, Room: room})
		if err := conn.WriteMessage(websocket.BinaryMessage, join); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond) // let joins land before the room message

	roomMsg, _ := codec.EncodeEnvelope(domain.Envelope{
		Kind: domain.KindRoomCipher, Room: room, Payload: []byte("hello team"),
	})
	if err := a.WriteMessage(websocket.BinaryMessage, roomMsg); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, conn := range []*websocket.Conn{b, c} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("expected room fan-out: %v", err)
		}
		got, err := codec.DecodeEnvelope(data)
		if err != nil || string(got.Payload) != "hello team" {
			t.Fatalf("unexpected room message: %+v err=%v", got, err)
		}
	}

	a.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := a.ReadMessage(); err == nil {
		t.Fatal("sender should not receive its own room message back")
	}
}

func TestPingReceivesPong(t *testing.T) {
	srv := relay.NewServer(nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	a, _ := dial(t, wsURL)
	defer a.Close()

	ping, _ := codec.EncodeEnvelope(domain.Envelope{Kind: domain.KindPing})
	if err := a.WriteMessage(websocket.BinaryMessage, ping); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := a.ReadMessage()
	if err != nil {
		t.Fatalf("expected pong: %v", err)
	}
	env, err := codec.DecodeEnvelope(data)
	if err != nil || env.Kind != domain.KindPong {
		t.Fatalf("expected Pong, got %+v err=%v", env, err)
	}
}
