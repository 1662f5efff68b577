package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/domain"
)

// backoff schedule for reconnect: 1s, 2s, 4s, capped at 30s, per spec.md §5.
var reconnectBackoff = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second,
	8 * time.Second, 16 * time.Second, 30 * time.Second,
}

// Client is a RelayTransport that dials a WebSocket relay and reconnects
// with exponential backoff on disconnect. Every successful (re)connect
// delivers a fresh Welcome envelope through Recv so the session manager
// can detect the new session-id and re-send its presence beacon.
type Client struct {
	url    string
	logger *zap.Logger

	mu        sync.RWMutex
	ws        *websocket.Conn
	sessionID domain.SessionID

	recvCh chan domain.Envelope
	stop   chan struct{}
	once   sync.Once
}

// NewClient returns a client for the given ws:// or wss:// relay URL.
func NewClient(url string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		logger: logger,
		recvCh: make(chan domain.Envelope, 256),
		stop:   make(chan struct{}),
	}
}

// Connect dials the relay and blocks until the first Welcome is received,
// then starts the background reconnect loop for subsequent drops.
func (c *Client) Connect(ctx context.Context) error {
	ws, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.setConn(ws)

	welcome, err := c.readWelcome(ws)
	if err != nil {
		return err
	}
	c.setSessionID(welcome)

	go c.readPump(ws)
	go c.keepaliveLoop()
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", c.url, err)
	}
	return ws, nil
}

func (c *Client) readWelcome(ws *websocket.Conn) (domain.SessionID, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("relay: read welcome: %w", err)
	}
	env, err := codec.DecodeEnvelope(data)
	if err != nil {
		return "", fmt.Errorf("relay: decode welcome: %w", err)
	}
	if env.Kind != domain.KindWelcome {
		return "", fmt.Errorf("relay: expected Welcome, got %s", env.Kind)
	}
	return env.SessionTo, nil
}

// SessionID returns the current session-id, valid until the next
// reconnect.
func (c *Client) SessionID() domain.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Send transmits one outer envelope as a single binary frame.
func (c *Client) Send(ctx context.Context, env domain.Envelope) error {
	b, err := codec.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	ws := c.conn()
	if ws == nil {
		return domain.ErrRelayClosed
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("relay: send: %w", err)
	}
	return nil
}

// Recv blocks until the next envelope arrives or ctx is canceled.
func (c *Client) Recv(ctx context.Context) (domain.Envelope, error) {
	select {
	case env, ok := <-c.recvCh:
		if !ok {
			return domain.Envelope{}, domain.ErrRelayClosed
		}
		return env, nil
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	case <-c.stop:
		return domain.Envelope{}, domain.ErrRelayClosed
	}
}

// Close terminates the connection and the reconnect loop.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.stop) })
	if ws := c.conn(); ws != nil {
		return ws.Close()
	}
	return nil
}

func (c *Client) conn() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ws
}

func (c *Client) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Client) setSessionID(id domain.SessionID) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Client) readPump(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleDisconnect()
			return
		}
		env, err := codec.DecodeEnvelope(data)
		if err != nil {
			c.logger.Debug("relay: malformed envelope from server", zap.Error(err))
			continue
		}
		select {
		case c.recvCh <- env:
		case <-c.stop:
			return
		}
	}
}

func (c *Client) handleDisconnect() {
	select {
	case <-c.stop:
		return
	default:
	}

	for attempt := 0; ; attempt++ {
		select {
		case <-c.stop:
			return
		case <-time.After(backoffFor(attempt)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ws, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("relay: reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		welcome, err := c.readWelcome(ws)
		if err != nil {
			_ = ws.Close()
			continue
		}

		c.setConn(ws)
		c.setSessionID(welcome)

		select {
		case c.recvCh <- domain.Envelope{Kind: domain.KindWelcome, SessionTo: welcome}:
		case <-c.stop:
			return
		}

		go c.readPump(ws)
		return
	}
}

func (c *Client) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ws := c.conn()
			if ws == nil {
				continue
			}
			b, err := codec.EncodeEnvelope(domain.Envelope{Kind: domain.KindPing})
			if err != nil {
				continue
			}
			_ = ws.WriteMessage(websocket.BinaryMessage, b)
		case <-c.stop:
			return
		}
	}
}

func backoffFor(attempt int) time.Duration {
	if attempt >= len(reconnectBackoff) {
		return reconnectBackoff[len(reconnectBackoff)-1]
	}
	return reconnectBackoff[attempt]
}

var _ domain.RelayTransport = (*Client)(nil)
