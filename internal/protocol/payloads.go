package protocol

import "github.com/rdesai/chatsync/internal/models"

// Command payloads (client -> server).

// GetChatMessagesPayload requests a page of messages for one chat.
type GetChatMessagesPayload struct {
	ChatID string `json:"chatId"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// CreatePrivateChatPayload asks the backend to create a two-party chat.
type CreatePrivateChatPayload struct {
	ParticipantID string `json:"participantId"`
}

// CreateGroupChatPayload asks the backend to create a group chat.
type CreateGroupChatPayload struct {
	Name        string   `json:"name"`
	MemberIDs   []string `json:"memberIds"`
	Description string   `json:"description,omitempty"`
}

// ChatMessagePayload carries an outbound text message.
type ChatMessagePayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// FileUploadPayload carries an outbound file as base64 data.
type FileUploadPayload struct {
	ChatID   string `json:"chatId"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
	FileData string `json:"fileData"`
}

// TypingPayload identifies the chat a typing_start/typing_stop applies to.
type TypingPayload struct {
	ChatID string `json:"chatId"`
}

// AddGroupMemberPayload invites a user into a group chat.
type AddGroupMemberPayload struct {
	ChatID   string `json:"chatId"`
	MemberID string `json:"memberId"`
}

// InvitationDecisionPayload accepts or rejects a group invitation.
type InvitationDecisionPayload struct {
	GroupID string `json:"groupId"`
}

// CallPayload coordinates one-to-one call signaling. The channel name is
// what both sides hand to the RTC provider.
type CallPayload struct {
	ChatID   string `json:"chatId"`
	CalleeID string `json:"calleeId,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// GroupCallPayload coordinates group call signaling.
type GroupCallPayload struct {
	ChatID  string `json:"chatId"`
	Channel string `json:"channel,omitempty"`
}

// Event payloads (server -> client).

// ConnectedPayload is the handshake acknowledgment. User may be nil.
type ConnectedPayload struct {
	UserID string       `json:"userId"`
	User   *models.User `json:"user,omitempty"`
}

// MessageEventPayload wraps a delivered message. message_sent,
// new_message and file_uploaded all use this shape; chat_message events
// carry the bare message instead.
type MessageEventPayload struct {
	Message *models.Message `json:"message"`
}

// MessageListPayload is a bulk message load for one chat.
type MessageListPayload struct {
	ChatID   string           `json:"chatId,omitempty"`
	Messages []models.Message `json:"messages"`
}

// ChatListPayload is a bulk chat load.
type ChatListPayload struct {
	Chats []models.Chat `json:"chats"`
}

// PendingInvitationsPayload is a bulk invitation load.
type PendingInvitationsPayload struct {
	Invitations []models.PendingInvitation `json:"invitations"`
}

// TypingEventPayload identifies who is composing where.
type TypingEventPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	ChatID   string `json:"chatId"`
}

// PresencePayload carries a user_online/user_offline subject.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// ChatCreatedPayload confirms a create_private_chat or create_group_chat.
type ChatCreatedPayload struct {
	Chat *models.Chat `json:"chat"`
}

// CallEventPayload describes an inbound call signaling event.
type CallEventPayload struct {
	ChatID   string `json:"chatId"`
	CallerID string `json:"callerId,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// ErrorPayload is the server-reported error envelope.
type ErrorPayload struct {
	Message string `json:"message"`
}
