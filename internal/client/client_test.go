package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rdesai/chatsync/internal/auth"
	"github.com/rdesai/chatsync/internal/config"
	"github.com/rdesai/chatsync/internal/models"
	"github.com/rdesai/chatsync/internal/server"
	"github.com/rdesai/chatsync/internal/state"
)

// harness spins the dev server and logs in one user per client.
type harness struct {
	srv  *httptest.Server
	cfg  *config.Config
	auth *auth.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	router, _, _ := server.NewRouter([]string{"*"})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{
		srv: srv,
		cfg: &config.Config{
			ServerURL:         srv.URL,
			WebSocketURL:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
			ReconnectAttempts: 5,
			ReconnectDelay:    50 * time.Millisecond,
		},
		auth: auth.NewClient(srv.URL),
	}
}

// connect logs a user in and brings up a connected client for them.
func (h *harness) connect(t *testing.T, username string) (*Client, *state.Store, *models.User) {
	t.Helper()
	resp, err := h.auth.Login(context.Background(), username, "pw")
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}

	store := state.New(h.srv.URL)
	store.SetCurrentUser(resp.User)
	c := New(h.cfg, resp.Token, store)
	if err := c.Session().Connect(context.Background()); err != nil {
		t.Fatalf("connect %s: %v", username, err)
	}
	t.Cleanup(c.Session().Disconnect)
	return c, store, resp.User
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	h := newHarness(t)

	resp, err := h.auth.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" || resp.User == nil || resp.User.Username != "alice" {
		t.Errorf("unexpected login response: %+v", resp)
	}
}

func TestCreateChatAndConverge(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")
	_, bobStore, bob := h.connect(t, "bob")

	alice.CreatePrivateChat(bob.ID)
	waitFor(t, "chat confirmation", func() bool {
		return !aliceStore.CreatingChat() && len(aliceStore.Chats()) == 1
	})
	if err := aliceStore.Err(); err != "" {
		t.Fatalf("creation surfaced error: %q", err)
	}
	chatID := aliceStore.Chats()[0].ID

	// Optimistic phase: exactly one provisional message, immediately.
	alice.SendMessage(chatID, "hello")
	msgs := aliceStore.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected immediate provisional message, got %d", len(msgs))
	}
	if !msgs[0].Provisional() {
		t.Fatalf("expected placeholder id, got %q", msgs[0].ID)
	}
	if msgs[0].Content != "hello" {
		t.Fatalf("provisional content = %q", msgs[0].Content)
	}

	// Reconciliation phase: the echo supersedes the provisional copy.
	waitFor(t, "echo to converge", func() bool {
		m := aliceStore.Messages()
		return len(m) == 1 && !m[0].Provisional()
	})
	final := aliceStore.Messages()[0]
	if final.Content != "hello" {
		t.Errorf("authoritative content = %q", final.Content)
	}

	// The peer sees exactly one copy too.
	waitFor(t, "peer delivery", func() bool {
		m := bobStore.Messages()
		return len(m) == 1 && m[0].ID == final.ID
	})
}

func TestCreateChatUnknownParticipant(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")

	alice.CreatePrivateChat("nobody")
	waitFor(t, "server error", func() bool {
		return !aliceStore.CreatingChat() && aliceStore.Err() != ""
	})
}

func TestCreateChatWhileDisconnected(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")

	alice.Session().Disconnect()
	alice.CreatePrivateChat("whoever")

	if aliceStore.CreatingChat() {
		t.Error("busy flag set without a live connection")
	}
	if aliceStore.Err() == "" {
		t.Error("no error surfaced for disconnected send")
	}
}

func TestTypingRelay(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")
	_, bobStore, bobUser := h.connect(t, "bob")

	alice.CreatePrivateChat(bobUser.ID)
	waitFor(t, "chat", func() bool { return len(aliceStore.Chats()) == 1 })
	chatID := aliceStore.Chats()[0].ID

	alice.SendTyping(chatID, true)
	waitFor(t, "typing start", func() bool { return len(bobStore.TypingUsers()) == 1 })
	if got := bobStore.TypingUsers()[0]; got.ChatID != chatID {
		t.Errorf("typing entry for wrong chat: %+v", got)
	}

	alice.SendTyping(chatID, false)
	waitFor(t, "typing stop", func() bool { return len(bobStore.TypingUsers()) == 0 })
}

func TestGroupInvitationFlow(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")
	bob, bobStore, bobUser := h.connect(t, "bob")

	alice.CreateGroupChat("team", []string{bobUser.ID}, "the team")
	waitFor(t, "group confirmation", func() bool {
		return !aliceStore.CreatingChat() && len(aliceStore.Chats()) == 1
	})
	waitFor(t, "invitation push", func() bool {
		return len(bobStore.PendingInvitations()) == 1
	})
	inv := bobStore.PendingInvitations()[0]
	if inv.GroupName != "team" {
		t.Errorf("invitation = %+v", inv)
	}

	bob.AcceptInvitation(inv.GroupID)
	// Removal is optimistic and immediate.
	if got := len(bobStore.PendingInvitations()); got != 0 {
		t.Fatalf("invitation not removed optimistically, %d left", got)
	}
	waitFor(t, "joined chat list", func() bool { return len(bobStore.Chats()) == 1 })
}

func TestSendFileRoundTrip(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")
	_, bobStore, bobUser := h.connect(t, "bob")

	alice.CreatePrivateChat(bobUser.ID)
	waitFor(t, "chat", func() bool { return len(aliceStore.Chats()) == 1 })
	chatID := aliceStore.Chats()[0].ID

	content := []byte("\x00\x01binary payload\xff")
	path := filepath.Join(t.TempDir(), "report.bin")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := alice.SendFile(chatID, "", path); err != nil {
		t.Fatalf("send file: %v", err)
	}

	// Optimistic phase: the provisional entry carries the file name as
	// content before any server round trip.
	msgs := aliceStore.Messages()
	if len(msgs) != 1 || msgs[0].Content != "report.bin" {
		t.Fatalf("provisional file message = %+v", msgs)
	}

	// The file_uploaded echo supersedes it with a served URL.
	waitFor(t, "upload echo", func() bool {
		m := aliceStore.Messages()
		return len(m) == 1 && !m[0].Provisional() && strings.Contains(m[0].FileURL, "/files/")
	})
	final := aliceStore.Messages()[0]
	if final.FileName != "report.bin" {
		t.Errorf("file name = %q", final.FileName)
	}

	// The served bytes must match the original file, not its base64 form.
	resp, err := http.Get(final.FileURL)
	if err != nil {
		t.Fatalf("fetch %s: %v", final.FileURL, err)
	}
	defer resp.Body.Close()
	served, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read served file: %v", err)
	}
	if !bytes.Equal(served, content) {
		t.Errorf("served %d bytes differ from uploaded %d bytes", len(served), len(content))
	}

	waitFor(t, "peer file delivery", func() bool {
		m := bobStore.Messages()
		return len(m) == 1 && m[0].ID == final.ID
	})
}

func TestSendFileReadError(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")

	err := alice.SendFile("c1", "", filepath.Join(t.TempDir(), "missing.bin"))
	if err == nil {
		t.Fatal("unreadable file accepted")
	}
	if got := aliceStore.Messages(); len(got) != 0 {
		t.Errorf("provisional entry left behind after failed read: %+v", got)
	}
}

func TestPresenceEvents(t *testing.T) {
	h := newHarness(t)
	_, aliceStore, _ := h.connect(t, "alice")

	bobClient, _, bobUser := h.connect(t, "bob")
	waitFor(t, "bob online", func() bool { return aliceStore.IsOnline(bobUser.ID) })

	bobClient.Session().Disconnect()
	waitFor(t, "bob offline", func() bool { return !aliceStore.IsOnline(bobUser.ID) })
}

func TestBulkMessageLoad(t *testing.T) {
	h := newHarness(t)
	alice, aliceStore, _ := h.connect(t, "alice")
	_, _, bobUser := h.connect(t, "bob")

	alice.CreatePrivateChat(bobUser.ID)
	waitFor(t, "chat", func() bool { return len(aliceStore.Chats()) == 1 })
	chatID := aliceStore.Chats()[0].ID

	alice.SendMessage(chatID, "one")
	waitFor(t, "first echo", func() bool {
		m := aliceStore.Messages()
		return len(m) == 1 && !m[0].Provisional()
	})
	alice.SendMessage(chatID, "two")
	waitFor(t, "second echo", func() bool {
		m := aliceStore.Messages()
		return len(m) == 2 && !m[1].Provisional()
	})

	// A fresh bulk load replaces the list in server order.
	aliceStore.SetMessages(nil)
	alice.RequestMessages(chatID)
	waitFor(t, "bulk load", func() bool { return len(aliceStore.Messages()) == 2 })
	m := aliceStore.Messages()
	if m[0].Content != "one" || m[1].Content != "two" {
		t.Errorf("bulk order wrong: %q, %q", m[0].Content, m[1].Content)
	}
	if aliceStore.Loading() {
		t.Error("loading flag not cleared by bulk load")
	}
	if aliceStore.SelectedChat() != chatID {
		t.Errorf("selected chat = %q", aliceStore.SelectedChat())
	}
}
