package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rdesai/chatsync/internal/models"
)

// Store is the development server's in-memory persistence: users,
// chats, messages, invitations and uploaded file bytes. Everything is
// ephemeral; the real backend owns durable storage.
type Store struct {
	mu sync.RWMutex

	usersByID    map[string]*models.User
	usersByToken map[string]string // token -> userID
	usersByName  map[string]string // username -> userID

	chats    map[string]*models.Chat
	messages map[string][]models.Message // chatID -> messages

	invitations map[string][]models.PendingInvitation // userID -> invitations

	files map[string][]byte // file path -> bytes
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		usersByID:    make(map[string]*models.User),
		usersByToken: make(map[string]string),
		usersByName:  make(map[string]string),
		chats:        make(map[string]*models.Chat),
		messages:     make(map[string][]models.Message),
		invitations:  make(map[string][]models.PendingInvitation),
		files:        make(map[string][]byte),
	}
}

// Login provisions the user on first sight and returns a fresh token.
// The dev server accepts any credentials.
func (s *Store) Login(username string) (string, *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByName[username]
	if !ok {
		id = uuid.New().String()
		s.usersByID[id] = &models.User{
			ID:        id,
			Username:  username,
			FirstName: username,
		}
		s.usersByName[username] = id
	}

	token := uuid.New().String()
	s.usersByToken[token] = id
	user := *s.usersByID[id]
	return token, &user
}

// UserByToken resolves a bearer token to its user, or nil.
func (s *Store) UserByToken(token string) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByToken[token]
	if !ok {
		return nil
	}
	user := *s.usersByID[id]
	return &user
}

// CreatePrivateChat creates a two-party chat between creator and peer.
func (s *Store) CreatePrivateChat(creatorID, participantID string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[participantID]; !ok {
		return nil, fmt.Errorf("unknown participant %s", participantID)
	}

	chat := &models.Chat{
		ID:             uuid.New().String(),
		Type:           models.ChatPrivate,
		ParticipantIDs: []string{creatorID, participantID},
		Messages:       []models.Message{},
		UpdatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.chats[chat.ID] = chat
	out := *chat
	return &out, nil
}

// CreateGroupChat creates a group chat with the creator as its only
// member and an invitation queued for every listed member.
func (s *Store) CreateGroupChat(creatorID, name string, memberIDs []string, description string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creator, ok := s.usersByID[creatorID]
	if !ok {
		return nil, fmt.Errorf("unknown creator %s", creatorID)
	}

	groupID := uuid.New().String()
	chat := &models.Chat{
		ID:          uuid.New().String(),
		Type:        models.ChatGroup,
		Name:        name,
		Description: description,
		Group: &models.Group{
			ID:   groupID,
			Name: name,
			Memberships: []models.Membership{
				{User: models.Participant{ID: creator.ID, FirstName: creator.FirstName, LastName: creator.LastName}},
			},
		},
		ParticipantIDs: []string{creatorID},
		Messages:       []models.Message{},
		UpdatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.chats[chat.ID] = chat

	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		if _, ok := s.usersByID[memberID]; !ok {
			continue
		}
		s.addInvitationLocked(memberID, models.PendingInvitation{
			GroupID:     groupID,
			GroupName:   name,
			Description: description,
		})
	}

	out := *chat
	return &out, nil
}

// addInvitationLocked appends an invitation unless one for the group
// already exists. Caller holds mu.
func (s *Store) addInvitationLocked(userID string, inv models.PendingInvitation) {
	for _, p := range s.invitations[userID] {
		if p.GroupID == inv.GroupID {
			return
		}
	}
	s.invitations[userID] = append(s.invitations[userID], inv)
}

// Invite queues a group invitation for memberID into the group behind chatID.
func (s *Store) Invite(chatID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok || chat.Group == nil {
		return fmt.Errorf("no group chat %s", chatID)
	}
	if _, ok := s.usersByID[memberID]; !ok {
		return fmt.Errorf("unknown member %s", memberID)
	}
	s.addInvitationLocked(memberID, models.PendingInvitation{
		GroupID:     chat.Group.ID,
		GroupName:   chat.Group.Name,
		Description: chat.Description,
	})
	return nil
}

// Invitations returns the user's outstanding invitations.
func (s *Store) Invitations(userID string) []models.PendingInvitation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PendingInvitation, len(s.invitations[userID]))
	copy(out, s.invitations[userID])
	return out
}

// ResolveInvitation removes the invitation and, when accepted, joins
// the user to the group. Returns the joined chat on accept.
func (s *Store) ResolveInvitation(userID, groupID string, accept bool) *models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.invitations[userID][:0]
	found := false
	for _, p := range s.invitations[userID] {
		if p.GroupID == groupID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	s.invitations[userID] = kept

	if !found || !accept {
		return nil
	}

	for _, chat := range s.chats {
		if chat.Group == nil || chat.Group.ID != groupID {
			continue
		}
		user := s.usersByID[userID]
		chat.Group.Memberships = append(chat.Group.Memberships, models.Membership{
			User: models.Participant{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName},
		})
		chat.ParticipantIDs = append(chat.ParticipantIDs, userID)
		out := *chat
		return &out
	}
	return nil
}

// AppendMessage stores a message in its chat and bumps chat activity.
func (s *Store) AppendMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	if chat, ok := s.chats[m.ChatID]; ok {
		chat.UpdatedAt = m.CreatedAt
		chat.Messages = append(chat.Messages, m)
		// Keep only the most recent messages embedded for preview.
		if len(chat.Messages) > 3 {
			chat.Messages = chat.Messages[len(chat.Messages)-3:]
		}
	}
}

// Messages returns one page of a chat's messages, oldest first.
func (s *Store) Messages(chatID string, page, limit int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	// Page 1 is the most recent window.
	end := len(msgs) - (page-1)*limit
	if end <= 0 {
		return []models.Message{}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, end-start)
	copy(out, msgs[start:end])
	return out
}

// Chat returns the chat with the given id, or nil.
func (s *Store) Chat(chatID string) *models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := *chat
	return &out
}

// ChatsFor returns every chat the user participates in, most recently
// active first is left to the client; insertion order here.
func (s *Store) ChatsFor(userID string) []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Chat
	for _, chat := range s.chats {
		for _, id := range chat.ParticipantIDs {
			if id == userID {
				out = append(out, *chat)
				break
			}
		}
	}
	return out
}

// Members returns the participant ids of a chat.
func (s *Store) Members(chatID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]string, len(chat.ParticipantIDs))
	copy(out, chat.ParticipantIDs)
	return out
}

// SaveFile stores uploaded bytes and returns the relative URL they are
// served under.
func (s *Store) SaveFile(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/files/%s-%s", uuid.New().String(), name)
	s.files[path] = data
	return path
}

// File returns stored file bytes by their relative URL.
func (s *Store) File(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[path]
	return data, ok
}
