package protocol

import "encoding/json"

// Envelope wraps every frame on the wire, in both directions.
// Frames are single JSON objects sent as websocket text messages.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	MessageID string          `json:"messageId,omitempty"`
}

// Wildcard is the reserved handler type that receives every inbound
// envelope in addition to the type-specific handler.
const Wildcard = "*"

// Client -> server command types.
const (
	CmdGetUserChats          = "get_user_chats"
	CmdGetChatMessages       = "get_chat_messages"
	CmdCreatePrivateChat     = "create_private_chat"
	CmdCreateGroupChat       = "create_group_chat"
	CmdChatMessage           = "chat_message"
	CmdFileUpload            = "file_upload"
	CmdTypingStart           = "typing_start"
	CmdTypingStop            = "typing_stop"
	CmdAddGroupMember        = "add_group_member"
	CmdGetPendingInvitations = "get_pending_invitations"
	CmdAcceptInvitation      = "accept_group_invitation"
	CmdRejectInvitation      = "reject_group_invitation"

	// Call signaling. The media transport itself is handled by an
	// external RTC provider; these only coordinate channel membership.
	CmdCallInitiate      = "call_initiate"
	CmdCallAccept        = "call_accept"
	CmdCallReject        = "call_reject"
	CmdCallEnd           = "call_end"
	CmdGroupCallInitiate = "group_call_initiate"
	CmdGroupCallJoin     = "group_call_join"
	CmdGroupCallLeave    = "group_call_leave"
	CmdGroupCallEnd      = "group_call_end"
)

// Server -> client event types.
const (
	EventConnected          = "connected"
	EventUserInfo           = "user_info"
	EventChatMessage        = "chat_message"
	EventMessageSent        = "message_sent"
	EventNewMessage         = "new_message"
	EventFileUploaded       = "file_uploaded"
	EventMessageList        = "message_list"
	EventChatMessages       = "chat_messages"
	EventChatList           = "chat_list"
	EventUserChats          = "user_chats"
	EventPendingInvitations = "pending_invitations"
	EventTypingStart        = "typing_start"
	EventTypingStop         = "typing_stop"
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventPrivateChatCreated = "private_chat_created"
	EventGroupChatCreated   = "group_chat_created"
	EventError              = "error"

	EventIncomingCall      = "incoming_call"
	EventCallAccepted      = "call_accepted"
	EventCallRejected      = "call_rejected"
	EventCallEnded         = "call_ended"
	EventGroupCallStarted  = "group_call_started"
	EventGroupCallJoined   = "group_call_joined"
	EventGroupCallLeft     = "group_call_left"
	EventGroupCallEnded    = "group_call_ended"
)

// NewEnvelope creates an envelope with the given type and marshaled payload.
func NewEnvelope(msgType string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: msgType, Payload: raw}, nil
}

// ParseEnvelope parses a JSON frame into an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
