package server

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rdesai/chatsync/internal/models"
	"github.com/rdesai/chatsync/internal/protocol"
)

// Hub maintains the set of connected clients, routes inbound commands
// to the store and pushes the resulting events to the affected users.
type Hub struct {
	// clients maps userID to that user's live connections
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	store *Store
}

// NewHub creates a new Hub instance.
func NewHub(store *Store) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		store:      store,
	}
}

// Run starts the hub's registration loop.
// This should be called in a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.User.ID] == nil {
		h.clients[client.User.ID] = make(map[*Client]bool)
	}
	h.clients[client.User.ID][client] = true
	first := len(h.clients[client.User.ID]) == 1
	h.mu.Unlock()

	log.Printf("[Hub] user %s connected", client.User.ID)

	// Handshake acknowledgment with the embedded profile.
	h.sendTo(client.User.ID, protocol.EventConnected, protocol.ConnectedPayload{
		UserID: client.User.ID,
		User:   client.User,
	})

	if first {
		h.broadcastExcept(client.User.ID, protocol.EventUserOnline, protocol.PresencePayload{UserID: client.User.ID})
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	last := false
	if conns, ok := h.clients[client.User.ID]; ok {
		if _, exists := conns[client]; exists {
			delete(conns, client)
			close(client.send)
			if len(conns) == 0 {
				delete(h.clients, client.User.ID)
				last = true
			}
		}
	}
	h.mu.Unlock()

	log.Printf("[Hub] user %s disconnected", client.User.ID)

	if last {
		h.broadcastExcept(client.User.ID, protocol.EventUserOffline, protocol.PresencePayload{UserID: client.User.ID})
	}
}

// sendTo pushes one event to every connection of a user.
func (h *Hub) sendTo(userID, eventType string, payload interface{}) {
	env, err := protocol.NewEnvelope(eventType, payload)
	if err != nil {
		log.Printf("[Hub] cannot marshal %s: %v", eventType, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			// Client buffer full; the pump will tear it down.
		}
	}
}

// broadcastExcept pushes one event to every connected user but one.
func (h *Hub) broadcastExcept(excludeID, eventType string, payload interface{}) {
	h.mu.RLock()
	userIDs := make([]string, 0, len(h.clients))
	for id := range h.clients {
		if id != excludeID {
			userIDs = append(userIDs, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range userIDs {
		h.sendTo(id, eventType, payload)
	}
}

// sendError pushes an error envelope to a user.
func (h *Hub) sendError(userID, message string) {
	h.sendTo(userID, protocol.EventError, protocol.ErrorPayload{Message: message})
}

// handleCommand dispatches one inbound command envelope.
func (h *Hub) handleCommand(c *Client, env *protocol.Envelope) {
	switch env.Type {
	case protocol.CmdGetUserChats:
		chats := h.store.ChatsFor(c.User.ID)
		if chats == nil {
			chats = []models.Chat{}
		}
		h.sendTo(c.User.ID, protocol.EventChatList, protocol.ChatListPayload{Chats: chats})

	case protocol.CmdGetChatMessages:
		var p protocol.GetChatMessagesPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid get_chat_messages payload")
			return
		}
		h.sendTo(c.User.ID, protocol.EventMessageList, protocol.MessageListPayload{
			ChatID:   p.ChatID,
			Messages: h.store.Messages(p.ChatID, p.Page, p.Limit),
		})

	case protocol.CmdCreatePrivateChat:
		var p protocol.CreatePrivateChatPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid create_private_chat payload")
			return
		}
		chat, err := h.store.CreatePrivateChat(c.User.ID, p.ParticipantID)
		if err != nil {
			h.sendError(c.User.ID, err.Error())
			return
		}
		h.sendTo(c.User.ID, protocol.EventPrivateChatCreated, protocol.ChatCreatedPayload{Chat: chat})
		h.sendTo(p.ParticipantID, protocol.EventPrivateChatCreated, protocol.ChatCreatedPayload{Chat: chat})

	case protocol.CmdCreateGroupChat:
		var p protocol.CreateGroupChatPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid create_group_chat payload")
			return
		}
		chat, err := h.store.CreateGroupChat(c.User.ID, p.Name, p.MemberIDs, p.Description)
		if err != nil {
			h.sendError(c.User.ID, err.Error())
			return
		}
		h.sendTo(c.User.ID, protocol.EventGroupChatCreated, protocol.ChatCreatedPayload{Chat: chat})
		for _, memberID := range p.MemberIDs {
			if memberID == c.User.ID {
				continue
			}
			h.pushInvitations(memberID)
		}

	case protocol.CmdChatMessage:
		var p protocol.ChatMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid chat_message payload")
			return
		}
		h.deliverMessage(c, h.buildMessage(c, p.ChatID, p.Content, "", ""), protocol.EventMessageSent)

	case protocol.CmdFileUpload:
		var p protocol.FileUploadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid file_upload payload")
			return
		}
		data, err := base64.StdEncoding.DecodeString(p.FileData)
		if err != nil {
			h.sendError(c.User.ID, "invalid file data encoding")
			return
		}
		path := h.store.SaveFile(p.FileName, data)
		h.deliverMessage(c, h.buildMessage(c, p.ChatID, p.FileName, path, p.FileName), protocol.EventFileUploaded)

	case protocol.CmdTypingStart, protocol.CmdTypingStop:
		var p protocol.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		event := protocol.EventTypingStart
		if env.Type == protocol.CmdTypingStop {
			event = protocol.EventTypingStop
		}
		h.relayToChat(c, p.ChatID, event, protocol.TypingEventPayload{
			UserID:   c.User.ID,
			UserName: c.User.FirstName,
			ChatID:   p.ChatID,
		})

	case protocol.CmdAddGroupMember:
		var p protocol.AddGroupMemberPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid add_group_member payload")
			return
		}
		if err := h.store.Invite(p.ChatID, p.MemberID); err != nil {
			h.sendError(c.User.ID, err.Error())
			return
		}
		h.pushInvitations(p.MemberID)

	case protocol.CmdGetPendingInvitations:
		h.pushInvitations(c.User.ID)

	case protocol.CmdAcceptInvitation, protocol.CmdRejectInvitation:
		var p protocol.InvitationDecisionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c.User.ID, "invalid invitation payload")
			return
		}
		accept := env.Type == protocol.CmdAcceptInvitation
		if chat := h.store.ResolveInvitation(c.User.ID, p.GroupID, accept); chat != nil {
			chats := h.store.ChatsFor(c.User.ID)
			h.sendTo(c.User.ID, protocol.EventChatList, protocol.ChatListPayload{Chats: chats})
		}

	case protocol.CmdCallInitiate, protocol.CmdCallAccept, protocol.CmdCallReject, protocol.CmdCallEnd,
		protocol.CmdGroupCallInitiate, protocol.CmdGroupCallJoin, protocol.CmdGroupCallLeave, protocol.CmdGroupCallEnd:
		h.relayCall(c, env)

	default:
		h.sendError(c.User.ID, "unknown command: "+env.Type)
	}
}

// buildMessage assembles an authoritative message record.
func (h *Hub) buildMessage(c *Client, chatID, content, fileURL, fileName string) models.Message {
	return models.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  c.User.ID,
		Content:   content,
		FileURL:   fileURL,
		FileName:  fileName,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Sender: models.Sender{
			ID:        c.User.ID,
			FirstName: c.User.FirstName,
			LastName:  c.User.LastName,
			Image:     c.User.Image,
		},
	}
}

// deliverMessage stores a message, echoes it to the sender under
// echoEvent and pushes new_message to the chat's other members.
func (h *Hub) deliverMessage(c *Client, m models.Message, echoEvent string) {
	members := h.store.Members(m.ChatID)
	if members == nil {
		h.sendError(c.User.ID, "unknown chat: "+m.ChatID)
		return
	}

	h.store.AppendMessage(m)
	h.sendTo(c.User.ID, echoEvent, protocol.MessageEventPayload{Message: &m})
	for _, memberID := range members {
		if memberID == c.User.ID {
			continue
		}
		h.sendTo(memberID, protocol.EventNewMessage, protocol.MessageEventPayload{Message: &m})
	}
}

// relayToChat pushes an event to every chat member except the sender.
func (h *Hub) relayToChat(c *Client, chatID, eventType string, payload interface{}) {
	for _, memberID := range h.store.Members(chatID) {
		if memberID == c.User.ID {
			continue
		}
		h.sendTo(memberID, eventType, payload)
	}
}

// pushInvitations sends a user their current invitation list.
func (h *Hub) pushInvitations(userID string) {
	invs := h.store.Invitations(userID)
	if invs == nil {
		invs = []models.PendingInvitation{}
	}
	h.sendTo(userID, protocol.EventPendingInvitations, protocol.PendingInvitationsPayload{Invitations: invs})
}

// callEvents maps call-signaling commands to the event their peers see.
var callEvents = map[string]string{
	protocol.CmdCallInitiate:      protocol.EventIncomingCall,
	protocol.CmdCallAccept:        protocol.EventCallAccepted,
	protocol.CmdCallReject:        protocol.EventCallRejected,
	protocol.CmdCallEnd:           protocol.EventCallEnded,
	protocol.CmdGroupCallInitiate: protocol.EventGroupCallStarted,
	protocol.CmdGroupCallJoin:     protocol.EventGroupCallJoined,
	protocol.CmdGroupCallLeave:    protocol.EventGroupCallLeft,
	protocol.CmdGroupCallEnd:      protocol.EventGroupCallEnded,
}

// relayCall forwards call signaling to the other chat members; the
// media itself is the RTC provider's business.
func (h *Hub) relayCall(c *Client, env *protocol.Envelope) {
	var p protocol.CallPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.sendError(c.User.ID, "invalid call payload")
		return
	}
	h.relayToChat(c, p.ChatID, callEvents[env.Type], protocol.CallEventPayload{
		ChatID:   p.ChatID,
		CallerID: c.User.ID,
		Channel:  p.Channel,
	})
}

// ClientCount returns the number of live connections for a user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
