// Package client wires the transport session and the state store
// together: it registers a handler for every inbound event type and
// exposes the high-level operations UI surfaces call. Operations follow
// a two-phase write: an optimistic local mutation first, the typed
// command over the socket second.
package client

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rdesai/chatsync/internal/config"
	"github.com/rdesai/chatsync/internal/models"
	"github.com/rdesai/chatsync/internal/protocol"
	"github.com/rdesai/chatsync/internal/session"
	"github.com/rdesai/chatsync/internal/state"
)

const (
	// defaultMessagePage is the page size for bulk message loads.
	defaultMessagePage  = 1
	defaultMessageLimit = 50

	errNotConnected = "Connection lost. Please try again."
)

// CallFunc receives inbound call-signaling events. The media transport
// is an external RTC provider; the client only relays channel
// coordination.
type CallFunc func(eventType string, payload protocol.CallEventPayload)

// Client is the composed chat client: one session, one store.
type Client struct {
	store  *state.Store
	sess   *session.Session
	onCall CallFunc
}

// Option configures a Client.
type Option func(*Client)

// WithCallHandler installs the callback for call-signaling events.
func WithCallHandler(fn CallFunc) Option {
	return func(c *Client) { c.onCall = fn }
}

// New builds a client from configuration, a token and a store, and
// registers every event handler. Connect happens in Run.
func New(cfg *config.Config, token string, store *state.Store, opts ...Option) *Client {
	c := &Client{
		store: store,
		sess: session.New(cfg.WebSocketURL, token,
			session.WithReconnectAttempts(cfg.ReconnectAttempts),
			session.WithReconnectDelay(cfg.ReconnectDelay),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerHandlers()
	return c
}

// Session exposes the underlying transport session.
func (c *Client) Session() *session.Session {
	return c.sess
}

// Run connects, requests the initial chat list and pending invitations,
// and blocks until ctx is canceled, then disconnects.
func (c *Client) Run(ctx context.Context) error {
	if err := c.sess.Connect(ctx); err != nil {
		return err
	}
	c.RequestChats()
	c.RequestPendingInvitations()

	<-ctx.Done()
	c.sess.Disconnect()
	return ctx.Err()
}

func (c *Client) registerHandlers() {
	c.sess.On(protocol.EventConnected, func(payload json.RawMessage) {
		log.Printf("[Client] handshake acknowledged")
	})

	c.sess.On(protocol.EventUserInfo, func(payload json.RawMessage) {
		var user models.User
		if err := json.Unmarshal(payload, &user); err != nil {
			log.Printf("[Client] bad user_info payload: %v", err)
			return
		}
		c.store.SetCurrentUser(&user)
	})

	// chat_message delivers a bare message; the other delivery aliases
	// wrap it in {message: ...}.
	c.sess.On(protocol.EventChatMessage, func(payload json.RawMessage) {
		var m models.Message
		if err := json.Unmarshal(payload, &m); err != nil {
			log.Printf("[Client] bad chat_message payload: %v", err)
			return
		}
		c.store.AddMessage(m)
	})
	for _, event := range []string{
		protocol.EventMessageSent,
		protocol.EventNewMessage,
		protocol.EventFileUploaded,
	} {
		c.sess.On(event, func(payload json.RawMessage) {
			var p protocol.MessageEventPayload
			if err := json.Unmarshal(payload, &p); err != nil || p.Message == nil {
				return
			}
			c.store.AddMessage(*p.Message)
		})
	}

	for _, event := range []string{protocol.EventMessageList, protocol.EventChatMessages} {
		c.sess.On(event, func(payload json.RawMessage) {
			var p protocol.MessageListPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return
			}
			c.store.SetMessages(p.Messages)
			c.store.SetLoading(false)
		})
	}

	for _, event := range []string{protocol.EventChatList, protocol.EventUserChats} {
		c.sess.On(event, func(payload json.RawMessage) {
			var p protocol.ChatListPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return
			}
			c.store.SetChats(p.Chats)
		})
	}

	c.sess.On(protocol.EventPendingInvitations, func(payload json.RawMessage) {
		var p protocol.PendingInvitationsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		c.store.SetPendingInvitations(p.Invitations)
	})

	c.sess.On(protocol.EventTypingStart, func(payload json.RawMessage) {
		var p protocol.TypingEventPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" || p.ChatID == "" {
			return
		}
		name := p.UserName
		if name == "" {
			name = "User"
		}
		c.store.AddTypingUser(models.TypingUser{UserID: p.UserID, UserName: name, ChatID: p.ChatID})
	})
	c.sess.On(protocol.EventTypingStop, func(payload json.RawMessage) {
		var p protocol.TypingEventPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" || p.ChatID == "" {
			return
		}
		c.store.RemoveTypingUser(p.UserID, p.ChatID)
	})

	c.sess.On(protocol.EventUserOnline, func(payload json.RawMessage) {
		var p protocol.PresencePayload
		if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" {
			return
		}
		c.store.AddOnlineUser(p.UserID)
	})
	c.sess.On(protocol.EventUserOffline, func(payload json.RawMessage) {
		var p protocol.PresencePayload
		if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" {
			return
		}
		c.store.RemoveOnlineUser(p.UserID)
	})

	for _, event := range []string{protocol.EventPrivateChatCreated, protocol.EventGroupChatCreated} {
		c.sess.On(event, func(payload json.RawMessage) {
			var p protocol.ChatCreatedPayload
			if err := json.Unmarshal(payload, &p); err != nil || p.Chat == nil {
				c.store.SettleCreateChat()
				return
			}
			c.store.FinishCreateChat(*p.Chat)
		})
	}

	c.sess.On(protocol.EventError, func(payload json.RawMessage) {
		var p protocol.ErrorPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			p.Message = ""
		}
		log.Printf("[Client] server error: %s", p.Message)
		c.store.FailCreateChat(p.Message)
	})

	for _, event := range []string{
		protocol.EventIncomingCall,
		protocol.EventCallAccepted,
		protocol.EventCallRejected,
		protocol.EventCallEnded,
		protocol.EventGroupCallStarted,
		protocol.EventGroupCallJoined,
		protocol.EventGroupCallLeft,
		protocol.EventGroupCallEnded,
	} {
		event := event
		c.sess.On(event, func(payload json.RawMessage) {
			if c.onCall == nil {
				return
			}
			var p protocol.CallEventPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return
			}
			c.onCall(event, p)
		})
	}
}

// SendMessage optimistically appends a provisional message for chatID
// and issues the chat_message command. Empty content is a no-op.
func (c *Client) SendMessage(chatID, content string) {
	if content == "" {
		return
	}
	c.store.AppendProvisional(chatID, content, "", "")
	c.sess.Send(protocol.CmdChatMessage, protocol.ChatMessagePayload{
		ChatID:  chatID,
		Content: content,
	})
}

// SendTyping issues a typing_start or typing_stop for chatID.
func (c *Client) SendTyping(chatID string, isTyping bool) {
	cmd := protocol.CmdTypingStop
	if isTyping {
		cmd = protocol.CmdTypingStart
	}
	c.sess.Send(cmd, protocol.TypingPayload{ChatID: chatID})
}

// CreatePrivateChat asks the backend for a two-party chat with
// participantID. The store's busy flag and creation timeout bound the
// wait for the confirmation event.
func (c *Client) CreatePrivateChat(participantID string) {
	if !c.sess.IsConnected() {
		c.store.SetErr(errNotConnected)
		return
	}
	c.store.BeginCreateChat()
	c.sess.Send(protocol.CmdCreatePrivateChat, protocol.CreatePrivateChatPayload{
		ParticipantID: participantID,
	})
}

// CreateGroupChat asks the backend for a group chat, under the same
// busy-flag and timeout discipline as CreatePrivateChat.
func (c *Client) CreateGroupChat(name string, memberIDs []string, description string) {
	if !c.sess.IsConnected() {
		c.store.SetErr(errNotConnected)
		return
	}
	c.store.BeginCreateChat()
	c.sess.Send(protocol.CmdCreateGroupChat, protocol.CreateGroupChatPayload{
		Name:        name,
		MemberIDs:   memberIDs,
		Description: description,
	})
}

// RequestChats asks for the full chat list.
func (c *Client) RequestChats() {
	c.sess.Send(protocol.CmdGetUserChats, struct{}{})
}

// RequestMessages selects chatID and asks for its first page of messages.
func (c *Client) RequestMessages(chatID string) {
	c.store.SelectChat(chatID)
	c.store.SetLoading(true)
	c.sess.Send(protocol.CmdGetChatMessages, protocol.GetChatMessagesPayload{
		ChatID: chatID,
		Page:   defaultMessagePage,
		Limit:  defaultMessageLimit,
	})
}

// AddGroupMember invites memberID into the group chat chatID.
func (c *Client) AddGroupMember(chatID, memberID string) {
	if !c.sess.IsConnected() {
		c.store.SetErr(errNotConnected)
		return
	}
	c.store.SetErr("")
	c.sess.Send(protocol.CmdAddGroupMember, protocol.AddGroupMemberPayload{
		ChatID:   chatID,
		MemberID: memberID,
	})
}

// RequestPendingInvitations asks for the outstanding invitation list.
func (c *Client) RequestPendingInvitations() {
	c.sess.Send(protocol.CmdGetPendingInvitations, struct{}{})
}

// AcceptInvitation accepts a group invitation. The local entry is
// removed optimistically, independent of server confirmation.
func (c *Client) AcceptInvitation(groupID string) {
	if !c.sess.IsConnected() {
		c.store.SetErr(errNotConnected)
		return
	}
	c.store.RemovePendingInvitation(groupID)
	c.sess.Send(protocol.CmdAcceptInvitation, protocol.InvitationDecisionPayload{GroupID: groupID})
}

// RejectInvitation rejects a group invitation, removing the local entry
// optimistically.
func (c *Client) RejectInvitation(groupID string) {
	if !c.sess.IsConnected() {
		c.store.SetErr(errNotConnected)
		return
	}
	c.store.RemovePendingInvitation(groupID)
	c.sess.Send(protocol.CmdRejectInvitation, protocol.InvitationDecisionPayload{GroupID: groupID})
}
