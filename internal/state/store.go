package state

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rdesai/chatsync/internal/models"
)

// CreateChatTimeout bounds how long a chat-creation command may stay in
// flight before the store surfaces a timeout error.
const CreateChatTimeout = 10 * time.Second

// ErrTimeout is the user-visible error set when a command's
// confirmation never arrives.
const ErrTimeout = "Request timed out. Please try again."

// Store is the authoritative client-side cache of chats, messages for
// the open chat, typing indicators, presence, pending invitations and
// operation flags. It is constructed explicitly and shared by reference
// between the session wiring and any consuming surface; all mutation
// goes through its methods, which serialize on an internal mutex.
//
// Failures never propagate out of Store operations: they land in the
// error field and busy flags for the presentation layer to read.
type Store struct {
	mu sync.Mutex

	chats              []models.Chat
	selectedChatID     string
	messages           []models.Message
	typingUsers        []models.TypingUser
	onlineUsers        map[string]struct{}
	pendingInvitations []models.PendingInvitation
	currentUser        *models.User
	loading            bool
	err                string
	creatingChat       bool

	createChat    Correlator
	createTimeout time.Duration

	// origin is the backend HTTP origin relative file URLs resolve against
	origin string
}

// Option configures a Store.
type Option func(*Store)

// WithCreateTimeout overrides the chat-creation timeout. Used by tests.
func WithCreateTimeout(d time.Duration) Option {
	return func(s *Store) { s.createTimeout = d }
}

// New creates an empty store. origin is the backend HTTP origin used to
// resolve relative file URLs.
func New(origin string, opts ...Option) *Store {
	s := &Store{
		onlineUsers:   make(map[string]struct{}),
		createTimeout: CreateChatTimeout,
		origin:        origin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages

// AddMessage reconciles an inbound message into the list for the open
// chat: file references are normalized, provisional copies superseded,
// duplicates discarded.
func (s *Store) AddMessage(m models.Message) {
	m = normalizeMessage(s.origin, m)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = Reconcile(s.messages, m)
}

// AppendProvisional inserts an optimistic local message with a
// placeholder id and returns it. The caller sends the matching command
// afterwards; the provisional entry is superseded when the server's
// authoritative copy arrives.
func (s *Store) AppendProvisional(chatID, content, fileURL, fileName string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sender models.Sender
	senderID := ""
	if s.currentUser != nil {
		senderID = s.currentUser.ID
		sender = models.Sender{
			ID:        s.currentUser.ID,
			FirstName: s.currentUser.FirstName,
			LastName:  s.currentUser.LastName,
			Image:     s.currentUser.Image,
		}
	}

	m := models.Message{
		ID:        models.ProvisionalPrefix + uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		FileURL:   fileURL,
		FileName:  fileName,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Sender:    sender,
	}
	s.messages = append(s.messages, m)
	return m
}

// SetMessages replaces the message list with a bulk load.
func (s *Store) SetMessages(msgs []models.Message) {
	normalized := make([]models.Message, len(msgs))
	for i, m := range msgs {
		normalized[i] = normalizeMessage(s.origin, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = normalized
}

// UpdateMessage replaces the content of the message with the given id.
// Unknown ids are a no-op.
func (s *Store) UpdateMessage(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Content = content
		}
	}
}

// DeleteMessage soft-deletes the message with the given id. The entry
// keeps its id and position; only its content is presented as withdrawn.
func (s *Store) DeleteMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].IsDeleted = true
		}
	}
}

// RemoveMessage drops the message with the given id from the list
// entirely. Used to retract a provisional entry whose command never
// went out; confirmed messages are withdrawn with DeleteMessage instead.
func (s *Store) RemoveMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID == id {
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
}

// Messages returns a copy of the current message list.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Chats

// SetChats replaces the chat collection with a bulk load.
func (s *Store) SetChats(chats []models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append([]models.Chat(nil), chats...)
}

// AddChat prepends a newly created chat. A chat whose id already exists
// in the collection is a no-op.
func (s *Store) AddChat(chat models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.ID == chat.ID {
			return
		}
	}
	s.chats = append([]models.Chat{chat}, s.chats...)
}

// Chats returns a copy of the chat collection.
func (s *Store) Chats() []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// SelectChat records which chat is open. Its messages are what the
// message list holds.
func (s *Store) SelectChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedChatID = chatID
}

// SelectedChat returns the open chat's id, or empty if none.
func (s *Store) SelectedChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedChatID
}

// Typing indicators

// AddTypingUser records that a user is composing in a chat. At most one
// entry exists per (user, chat) pair; re-adding is a no-op.
func (s *Store) AddTypingUser(u models.TypingUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.typingUsers {
		if t.UserID == u.UserID && t.ChatID == u.ChatID {
			return
		}
	}
	s.typingUsers = append(s.typingUsers, u)
}

// RemoveTypingUser clears a (user, chat) typing entry. Removing an
// absent key is a no-op.
func (s *Store) RemoveTypingUser(userID, chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.typingUsers[:0]
	for _, t := range s.typingUsers {
		if t.UserID == userID && t.ChatID == chatID {
			continue
		}
		kept = append(kept, t)
	}
	s.typingUsers = kept
}

// TypingUsers returns a copy of the current typing entries.
func (s *Store) TypingUsers() []models.TypingUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TypingUser, len(s.typingUsers))
	copy(out, s.typingUsers)
	return out
}

// Presence

// SetOnlineUsers replaces the presence set.
func (s *Store) SetOnlineUsers(userIDs []string) {
	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineUsers = set
}

// AddOnlineUser marks a user present. Adding a present user is a no-op.
func (s *Store) AddOnlineUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineUsers[userID] = struct{}{}
}

// RemoveOnlineUser marks a user absent. Removing an absent user is a no-op.
func (s *Store) RemoveOnlineUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.onlineUsers, userID)
}

// IsOnline reports whether the backend currently considers a user present.
func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.onlineUsers[userID]
	return ok
}

// OnlineCount returns the size of the presence set.
func (s *Store) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.onlineUsers)
}

// Invitations

// SetPendingInvitations replaces the invitation list with a bulk load.
func (s *Store) SetPendingInvitations(invs []models.PendingInvitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingInvitations = append([]models.PendingInvitation(nil), invs...)
}

// AddPendingInvitation records a pushed invitation. At most one entry
// exists per group id.
func (s *Store) AddPendingInvitation(inv models.PendingInvitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pendingInvitations {
		if p.GroupID == inv.GroupID {
			return
		}
	}
	s.pendingInvitations = append(s.pendingInvitations, inv)
}

// RemovePendingInvitation drops the invitation for a group. Called
// optimistically on local accept/reject, independent of server
// confirmation.
func (s *Store) RemovePendingInvitation(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.pendingInvitations[:0]
	for _, p := range s.pendingInvitations {
		if p.GroupID == groupID {
			continue
		}
		kept = append(kept, p)
	}
	s.pendingInvitations = kept
}

// PendingInvitations returns a copy of the outstanding invitations.
func (s *Store) PendingInvitations() []models.PendingInvitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingInvitation, len(s.pendingInvitations))
	copy(out, s.pendingInvitations)
	return out
}

// User, flags and errors

// SetCurrentUser records the authenticated user's profile.
func (s *Store) SetCurrentUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = u
}

// CurrentUser returns the authenticated user's profile, or nil.
func (s *Store) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUser == nil {
		return nil
	}
	u := *s.currentUser
	return &u
}

// SetLoading sets the bulk-load flag.
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// Loading reports whether a bulk load is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetErr records a user-visible error string; empty clears it.
func (s *Store) SetErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

// Err returns the current user-visible error, or empty.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// CreatingChat reports whether a chat-creation command is in flight.
func (s *Store) CreatingChat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creatingChat
}

// Chat creation pairing

// BeginCreateChat marks a creation command in flight, clears any prior
// error and arms the timeout that converts backend silence into a
// user-visible error.
func (s *Store) BeginCreateChat() {
	s.mu.Lock()
	s.creatingChat = true
	s.err = ""
	s.mu.Unlock()

	s.createChat.Begin(s.createTimeout, func() {
		log.Printf("[State] chat creation timed out after %v", s.createTimeout)
		s.mu.Lock()
		s.creatingChat = false
		s.err = ErrTimeout
		s.mu.Unlock()
	})
}

// SettleCreateChat clears the in-flight flag without touching the error
// field, for confirmation events that carry no chat body. Idempotent; a
// timeout firing after it is a no-op.
func (s *Store) SettleCreateChat() {
	s.createChat.Settle()

	s.mu.Lock()
	s.creatingChat = false
	s.mu.Unlock()
}

// FinishCreateChat settles the in-flight creation with its confirmed
// chat: the busy flag clears, the chat is prepended (skipped if its id
// already exists) and any error is wiped. Arriving after the timeout
// already fired still inserts the chat.
func (s *Store) FinishCreateChat(chat models.Chat) {
	s.SettleCreateChat()

	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()

	s.AddChat(chat)
}

// FailCreateChat settles the in-flight creation with a server-reported
// error. An empty message falls back to a generic one.
func (s *Store) FailCreateChat(msg string) {
	s.createChat.Settle()

	if msg == "" {
		msg = "An error occurred"
	}
	s.mu.Lock()
	s.creatingChat = false
	s.err = msg
	s.mu.Unlock()
}
