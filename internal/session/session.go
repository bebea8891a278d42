package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rdesai/chatsync/internal/protocol"
)

// State is the connection lifecycle state of a Session.
type State int

const (
	// StateIdle is the state before the first Connect.
	StateIdle State = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateOpen means the socket is live and frames flow.
	StateOpen

	// StateReconnecting means an unexpected close occurred and a retry
	// is scheduled.
	StateReconnecting

	// StateClosed means the session was explicitly disconnected or the
	// reconnect ceiling was reached. No further retries happen.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 3 * time.Second
	defaultDialTimeout          = 10 * time.Second
)

// Session owns one logical connection to the chat backend. It dials the
// configured endpoint with the auth token as a query parameter, reads
// inbound frames, dispatches them through its registry, and reconnects
// automatically after unexpected closes, bounded by the attempt ceiling.
//
// The underlying socket handle is owned exclusively by the Session: at
// most one handle is live at a time, and a new connect attempt closes
// any handle it supersedes.
type Session struct {
	url   string
	token string

	dialer   *websocket.Dialer
	registry *Registry

	maxAttempts int
	delay       time.Duration

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	attempts       int
	reconnectTimer *time.Timer
	userID         string
}

// Option configures a Session.
type Option func(*Session)

// WithReconnectAttempts sets the reconnect ceiling (default 5).
func WithReconnectAttempts(n int) Option {
	return func(s *Session) { s.maxAttempts = n }
}

// WithReconnectDelay sets the fixed spacing between reconnect attempts
// (default 3s). There is no backoff and no jitter.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// New creates a session for the given websocket URL and auth token.
// Connect must be called before frames flow.
func New(url, token string, opts ...Option) *Session {
	s := &Session{
		url:         url,
		token:       token,
		registry:    NewRegistry(),
		maxAttempts: defaultMaxReconnectAttempts,
		delay:       defaultReconnectDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultDialTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect establishes the socket and returns once the transport is open.
// A session that was explicitly disconnected can be connected again.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateOpen {
		s.mu.Unlock()
		return fmt.Errorf("session already %s", s.state)
	}
	// A connect supersedes whatever handle is still around.
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	return s.dial(ctx)
}

// dial performs the handshake for a session already in StateConnecting
// and installs the resulting handle. A Disconnect issued while the dial
// was in flight wins: the fresh handle is discarded and the session
// stays closed.
func (s *Session) dial(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, fmt.Sprintf("%s?token=%s", s.url, s.token), nil)
	if err != nil {
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("session closed during dial")
	}
	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	s.mu.Unlock()

	log.Printf("[Session] connected to %s", s.url)
	go s.readLoop(conn)
	return nil
}

// readLoop reads frames until the connection dies, then hands off to the
// close path. Bound to one specific conn so a superseded socket's loop
// cannot disturb its successor.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Session] read error: %v", err)
			}
			s.handleClose(conn)
			return
		}
		s.dispatch(data)
	}
}

// dispatch routes one inbound frame: the handshake event caches the
// server-assigned user id, the type-specific handler gets the payload,
// the wildcard handler gets the whole envelope, and a handshake carrying
// an embedded profile synthesizes a secondary user_info dispatch.
func (s *Session) dispatch(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Printf("[Session] dropping unparseable frame: %v", err)
		return
	}

	if env.Type == protocol.EventConnected {
		var payload protocol.ConnectedPayload
		if err := json.Unmarshal(env.Payload, &payload); err == nil {
			s.mu.Lock()
			s.userID = payload.UserID
			s.mu.Unlock()
		}
	}

	if h := s.registry.get(env.Type); h != nil {
		h(env.Payload)
	}
	if h := s.registry.get(protocol.Wildcard); h != nil {
		h(data)
	}

	if env.Type == protocol.EventConnected {
		var payload protocol.ConnectedPayload
		if err := json.Unmarshal(env.Payload, &payload); err == nil && payload.User != nil {
			if h := s.registry.get(protocol.EventUserInfo); h != nil {
				raw, err := json.Marshal(payload.User)
				if err == nil {
					h(raw)
				}
			}
		}
	}
}

// handleClose runs the reconnect state machine after a read failure.
func (s *Session) handleClose(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale loop from a superseded handle must not touch the session.
	if s.conn != conn {
		return
	}
	s.conn.Close()
	s.conn = nil

	if s.state == StateClosed {
		// Explicit disconnect: no reconnection.
		return
	}

	if s.attempts >= s.maxAttempts {
		log.Printf("[Session] giving up after %d reconnect attempts", s.attempts)
		s.state = StateClosed
		return
	}

	s.attempts++
	s.state = StateReconnecting
	log.Printf("[Session] connection lost, reconnecting (%d/%d)", s.attempts, s.maxAttempts)
	s.armReconnectLocked()
}

// retryOrGiveUp schedules another attempt after a failed dial, or stops
// at the ceiling.
func (s *Session) retryOrGiveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || s.state == StateOpen {
		return
	}
	if s.attempts >= s.maxAttempts {
		log.Printf("[Session] giving up after %d reconnect attempts", s.attempts)
		s.state = StateClosed
		return
	}

	s.attempts++
	s.state = StateReconnecting
	s.armReconnectLocked()
}

// armReconnectLocked arms the single reconnect timer. Caller holds mu.
// The session is the sole owner of this timer; an explicit Disconnect
// stops it, so reconnect cycles cannot leak timers.
func (s *Session) armReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.state != StateReconnecting {
			s.mu.Unlock()
			return
		}
		s.state = StateConnecting
		s.mu.Unlock()

		if err := s.dial(context.Background()); err != nil {
			log.Printf("[Session] reconnect failed: %v", err)
			s.retryOrGiveUp()
		}
	})
}

// Send serializes a {type, payload} envelope and writes it if the
// transport is currently open. When it is not, the command is dropped
// with a local warning: callers that need delivery confirmation must
// use a command timeout, not rely on Send signaling failure.
func (s *Session) Send(msgType string, payload interface{}) {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		log.Printf("[Session] cannot marshal %s payload: %v", msgType, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Session] cannot marshal %s envelope: %v", msgType, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen || s.conn == nil {
		log.Printf("[Session] not connected, dropping %s", msgType)
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Session] write %s failed: %v", msgType, err)
	}
}

// On registers handler for msgType; exactly one handler is kept per
// type, last registration wins. The protocol.Wildcard type receives
// every inbound envelope in addition to the type-specific handler.
func (s *Session) On(msgType string, handler Handler) {
	s.registry.Register(msgType, handler)
}

// Off removes the handler for msgType.
func (s *Session) Off(msgType string) {
	s.registry.Unregister(msgType)
}

// Disconnect closes the transport and clears the handle and the
// registered handlers. It suppresses any pending reconnection, wins
// over a dial currently in flight, and is idempotent. A disconnected
// session can be connected again, but its consumers must re-register
// their handlers first.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.state = StateClosed
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	s.registry.Clear()
}

// IsConnected reports whether the transport is currently open. Callers
// must treat false as authoritative before sending anything that should
// not be silently dropped.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen && s.conn != nil
}

// CurrentState returns the lifecycle state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the server-assigned user id learned from the handshake,
// or the empty string before one arrives.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}
