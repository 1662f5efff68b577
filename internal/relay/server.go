package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/domain"
)

const (
	// keepaliveInterval is how often clients are expected to send Ping.
	keepaliveInterval = 30 * time.Second
	// deadPeerTimeout is how long a connection may go silent before the
	// server closes it.
	deadPeerTimeout = 90 * time.Second
	// sendBufferSize bounds each connection's outbound queue; a slow
	// reader is disconnected rather than allowed to back-pressure the hub.
	sendBufferSize = 64
)

// Server is the blind relay: a WebSocket endpoint holding only in-memory
// session and room membership maps. It never persists anything and never
// inspects Envelope.Payload.
type Server struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[domain.SessionID]*conn
	rooms    map[domain.RoomID]map[domain.SessionID]struct{}
}

// conn is one accepted WebSocket connection and its outbound queue.
type conn struct {
	id   domain.SessionID
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewServer returns a relay server. logger must never be given a
// "payload"/"ciphertext" field by callers in this package; that invariant
// is enforced by convention and covered in DESIGN.md.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16},
		sessions: make(map[domain.SessionID]*conn),
		rooms:    make(map[domain.RoomID]map[domain.SessionID]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket, assigns a session-id, and
// runs the connection's read/write pumps until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("relay: upgrade failed", zap.Error(err))
		return
	}

	id := newSessionID()
	c := &conn{id: id, ws: ws, send: make(chan []byte, sendBufferSize), closed: make(chan struct{})}

	s.mu.Lock()
	s.sessions[id] = c
	s.mu.Unlock()
	s.logger.Info("relay: session connected", zap.String("session_id", string(id)))

	welcome, err := codec.EncodeEnvelope(domain.Envelope{Kind: domain.KindWelcome, SessionTo: id})
	if err == nil {
		c.enqueue(welcome)
	}

	go s.writePump(c)
	s.readPump(c)

	s.disconnect(c)
}

// ListenAndServe runs the relay's HTTP server on addr, mirroring the
// teacher's standalone-binary role for cmd/relay/main.go.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	s.logger.Info("relay: listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func (c *conn) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// Slow reader; drop rather than block the hub. The sender will
		// notice via keepalive timeout.
	}
}

func (s *Server) writePump(c *conn) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) readPump(c *conn) {
	_ = c.ws.SetReadDeadline(time.Now().Add(deadPeerTimeout))

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue // text frames are not used, per spec.md §6
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(deadPeerTimeout))

		env, err := codec.DecodeEnvelope(data)
		if err != nil {
			s.logger.Debug("relay: malformed envelope, dropping frame",
				zap.String("session_id", string(c.id)), zap.Error(err))
			continue
		}
		s.dispatch(c, env, data)
	}
}

func (s *Server) dispatch(c *conn, env domain.Envelope, raw []byte) {
	switch env.Kind {
	case domain.KindDirectCipher:
		s.forwardDirect(c, env, raw)
	case domain.KindRoomCipher:
		s.forwardRoom(c, env, raw)
	case domain.KindJoinRoom:
		s.joinRoom(c, env.Room)
	case domain.KindLeaveRoom:
		s.leaveRoom(c, env.Room)
	case domain.KindPing:
		s.pong(c)
	default:
		// Hello/Welcome/Lookup/LookupResult/Pong are either client-only,
		// server-only, or (Lookup) unsupported by a blind relay; a
		// well-behaved client never sends them here.
		s.logger.Debug("relay: unhandled envelope kind",
			zap.String("session_id", string(c.id)), zap.String("kind", env.Kind.String()))
	}
}

// forwardDirect implements two cases: a targeted DirectCipher{to} forwards
// to exactly that session, and an untargeted one (empty SessionTo) is a
// presence beacon per spec.md §4.5/§9, broadcast to every other connected
// session so peers can learn the sender's public key and session-id
// without a server-side directory.
func (s *Server) forwardDirect(c *conn, env domain.Envelope, raw []byte) {
	if env.SessionTo == "" {
		s.broadcast(c, raw)
		return
	}

	s.mu.RLock()
	target, ok := s.sessions[env.SessionTo]
	s.mu.RUnlock()
	if !ok {
		return // drop silently, do not signal existence
	}
	target.enqueue(raw)
}

func (s *Server) broadcast(c *conn, raw []byte) {
	s.mu.RLock()
	targets := make([]*conn, 0, len(s.sessions))
	for sid, t := range s.sessions {
		if sid == c.id {
			continue
		}
		targets = append(targets, t)
	}
	s.mu.RUnlock()

	for _, t := range targets {
		t.enqueue(raw)
	}
}

func (s *Server) forwardRoom(c *conn, env domain.Envelope, raw []byte) {
	s.mu.RLock()
	members := s.rooms[env.Room]
	targets := make([]*conn, 0, len(members))
	for sid := range members {
		if sid == c.id {
			continue
		}
		if t, ok := s.sessions[sid]; ok {
			targets = append(targets, t)
		}
	}
	s.mu.RUnlock()

	for _, t := range targets {
		t.enqueue(raw)
	}
}

func (s *Server) joinRoom(c *conn, room domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[room] == nil {
		s.rooms[room] = make(map[domain.SessionID]struct{})
	}
	s.rooms[room][c.id] = struct{}{}
}

func (s *Server) leaveRoom(c *conn, room domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.rooms[room]
	if members == nil {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(s.rooms, room)
	}
}

func (s *Server) pong(c *conn) {
	b, err := codec.EncodeEnvelope(domain.Envelope{Kind: domain.KindPong, SessionTo: c.id})
	if err != nil {
		return
	}
	c.enqueue(b)
}

func (s *Server) disconnect(c *conn) {
	s.mu.Lock()
	delete(s.sessions, c.id)
	for room, members := range s.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
	s.mu.Unlock()

	c.closeOnce.Do(func() { close(c.closed) })
	_ = c.ws.Close()
	s.logger.Info("relay: session disconnected", zap.String("session_id", string(c.id)))
}
