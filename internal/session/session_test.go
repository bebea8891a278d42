package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rdesai/chatsync/internal/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testServer is a minimal websocket endpoint that hands accepted
// connections to the test and counts dials.
type testServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	dials atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{conns: make(chan *websocket.Conn, 8)}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

// accept returns the next accepted server-side connection.
func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ts.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectAndDispatch(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok-1")
	defer s.Disconnect()

	var gotUserInfo atomic.Value
	var chatPayloads, wildcardFrames atomic.Int32

	s.On(protocol.EventUserInfo, func(payload json.RawMessage) {
		gotUserInfo.Store(string(payload))
	})
	s.On(protocol.EventChatMessage, func(payload json.RawMessage) {
		chatPayloads.Add(1)
	})
	s.On(protocol.Wildcard, func(frame json.RawMessage) {
		if _, err := protocol.ParseEnvelope(frame); err != nil {
			t.Errorf("wildcard did not receive a full envelope: %v", err)
		}
		wildcardFrames.Add(1)
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("not connected after Connect returned")
	}

	conn := ts.accept(t)
	defer conn.Close()

	// The token travels as a query parameter; the handshake event
	// carries the resolved user id and an embedded profile.
	sendEnvelope(t, conn, protocol.EventConnected, map[string]interface{}{
		"userId": "u1",
		"user":   map[string]string{"id": "u1", "firstName": "Uma"},
	})
	sendEnvelope(t, conn, protocol.EventChatMessage, map[string]string{"id": "m1"})

	waitFor(t, "user id from handshake", func() bool { return s.UserID() == "u1" })
	waitFor(t, "chat_message dispatch", func() bool { return chatPayloads.Load() == 1 })
	waitFor(t, "wildcard dispatch", func() bool { return wildcardFrames.Load() == 2 })

	info, _ := gotUserInfo.Load().(string)
	if !strings.Contains(info, "Uma") {
		t.Errorf("synthesized user_info dispatch missing profile: %q", info)
	}
}

func TestTokenQueryParam(t *testing.T) {
	var gotToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.URL.Query().Get("token"))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	s := New("ws"+strings.TrimPrefix(srv.URL, "http"), "secret-token")
	defer s.Disconnect()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if tok, _ := gotToken.Load().(string); tok != "secret-token" {
		t.Errorf("token query param = %q", tok)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok")
	defer s.Disconnect()

	var first, second atomic.Int32
	s.On("ping", func(json.RawMessage) { first.Add(1) })
	s.On("ping", func(json.RawMessage) { second.Add(1) })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := ts.accept(t)
	defer conn.Close()

	sendEnvelope(t, conn, "ping", map[string]string{})
	waitFor(t, "second handler", func() bool { return second.Load() == 1 })

	if first.Load() != 0 {
		t.Error("replaced handler still dispatched")
	}
}

func TestOffRemovesHandler(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok")
	defer s.Disconnect()

	var calls atomic.Int32
	s.On("ping", func(json.RawMessage) { calls.Add(1) })
	s.Off("ping")
	s.Off("ping") // absent type, no-op
	s.On("marker", func(json.RawMessage) { calls.Add(100) })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := ts.accept(t)
	defer conn.Close()

	sendEnvelope(t, conn, "ping", map[string]string{})
	sendEnvelope(t, conn, "marker", map[string]string{})
	waitFor(t, "marker dispatch", func() bool { return calls.Load() >= 100 })

	if calls.Load() != 100 {
		t.Errorf("unregistered handler dispatched, calls=%d", calls.Load())
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	s := New("ws://127.0.0.1:1/ws", "tok")

	// Must not panic and must not error out: the command is dropped
	// with a local warning.
	s.Send(protocol.CmdGetUserChats, struct{}{})

	if s.IsConnected() {
		t.Error("session claims to be connected")
	}
}

func TestSendReachesServer(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok")
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := ts.accept(t)
	defer conn.Close()

	s.Send(protocol.CmdChatMessage, protocol.ChatMessagePayload{ChatID: "c1", Content: "hi"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Type != protocol.CmdChatMessage {
		t.Errorf("wrong type on the wire: %q", env.Type)
	}
	var p protocol.ChatMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Content != "hi" {
		t.Errorf("payload mangled: %+v err=%v", p, err)
	}
}

func TestDisconnectIdempotentAndFinal(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok", WithReconnectDelay(10*time.Millisecond))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := ts.accept(t)
	defer conn.Close()

	s.Disconnect()
	s.Disconnect() // second call is a no-op

	if s.CurrentState() != StateClosed {
		t.Fatalf("state = %v, want closed", s.CurrentState())
	}

	// An explicit disconnect suppresses reconnection entirely.
	time.Sleep(100 * time.Millisecond)
	if n := ts.dials.Load(); n != 1 {
		t.Errorf("reconnect after explicit disconnect: %d dials", n)
	}
}

func TestDisconnectDuringReconnectDialStaysClosed(t *testing.T) {
	release := make(chan struct{})
	var dials atomic.Int32
	conns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) > 1 {
			<-release
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	defer srv.Close()

	s := New("ws"+strings.TrimPrefix(srv.URL, "http"), "tok", WithReconnectDelay(10*time.Millisecond))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	first := <-conns
	first.Close()

	// The reconnect dial is now stalled in the server's handler. A
	// Disconnect issued here must win over the dial in flight.
	waitFor(t, "reconnect dial to start", func() bool { return dials.Load() == 2 })
	s.Disconnect()
	if got := s.CurrentState(); got != StateClosed {
		t.Fatalf("state after disconnect = %v, want closed", got)
	}
	close(release)

	// The released dial completes; the fresh handle must be discarded
	// instead of reopening the session.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		if s.IsConnected() {
			t.Fatal("session resurrected after explicit disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.CurrentState(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestDisconnectClearsHandlers(t *testing.T) {
	s := New("ws://example/ws", "tok")
	s.On("ping", func(json.RawMessage) {})
	s.Disconnect()

	if s.registry.get("ping") != nil {
		t.Error("handler survived Disconnect")
	}

	// A disconnected session accepts fresh registrations for a later
	// Connect.
	s.On("ping", func(json.RawMessage) {})
	if s.registry.get("ping") == nil {
		t.Error("registration after Disconnect was dropped")
	}
}

func TestAutoReconnectAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok", WithReconnectDelay(10*time.Millisecond))
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := ts.accept(t)

	// Server-side drop: the session must come back on its own and the
	// attempt counter must reset once the socket reopens.
	conn.Close()
	waitFor(t, "reconnect", func() bool { return ts.dials.Load() >= 2 && s.IsConnected() })

	if got := s.CurrentState(); got != StateOpen {
		t.Errorf("state after reconnect = %v", got)
	}
	s.mu.Lock()
	attempts := s.attempts
	s.mu.Unlock()
	if attempts != 0 {
		t.Errorf("attempt counter not reset after reopen: %d", attempts)
	}
}

func TestReconnectCeiling(t *testing.T) {
	ts := newTestServer(t)
	s := New(ts.wsURL(), "tok",
		WithReconnectDelay(10*time.Millisecond),
		WithReconnectAttempts(3),
	)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := ts.accept(t)

	// Kill the listener and the live connection: every retry dials a
	// dead endpoint. The hijacked websocket is no longer tracked by
	// httptest, so it must be closed directly.
	ts.srv.Listener.Close()
	conn.Close()

	waitFor(t, "session to give up", func() bool { return s.CurrentState() == StateClosed })

	// No further attempts once closed.
	time.Sleep(100 * time.Millisecond)
	if s.CurrentState() != StateClosed {
		t.Errorf("session left closed state: %v", s.CurrentState())
	}
	s.mu.Lock()
	attempts := s.attempts
	s.mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly the ceiling 3", attempts)
	}
}

func TestDefaultReconnectKnobs(t *testing.T) {
	s := New("ws://example/ws", "tok")
	if s.maxAttempts != 5 {
		t.Errorf("default reconnect ceiling = %d, want 5", s.maxAttempts)
	}
	if s.delay != 3*time.Second {
		t.Errorf("default reconnect delay = %v, want 3s", s.delay)
	}
}
