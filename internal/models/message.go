package models

import "strings"

// ProvisionalPrefix marks locally created message ids that have not yet
// been confirmed by the backend. Reconciliation drops these once any
// authoritative message event arrives.
const ProvisionalPrefix = "temp-"

// Message is a unit of conversation content: text and/or a single file
// attachment. Messages arrive either from a server event or are created
// provisionally at send time for optimistic display.
type Message struct {
	// ID is the server-assigned id, or a ProvisionalPrefix-prefixed
	// placeholder until the backend confirms the message
	ID string `json:"id"`

	// ChatID is the chat this message belongs to
	ChatID string `json:"chatId"`

	// SenderID is the author's user id
	SenderID string `json:"senderId"`

	// Content is the message text
	Content string `json:"content"`

	// FileURL and FileName describe an optional single attachment
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`

	// CreatedAt is an RFC 3339 timestamp set by whoever created the message
	CreatedAt string `json:"createdAt"`

	// IsDeleted marks a withdrawn message. Deleted messages keep their
	// id and position but their content is presented as withdrawn.
	IsDeleted bool `json:"isDeleted"`

	// Sender carries the author's profile for display
	Sender Sender `json:"sender"`

	// Attachments is the structured attachment list some backend shapes
	// use instead of the direct file fields
	Attachments []Attachment `json:"attachments,omitempty"`

	ReplyToMessageID string `json:"replyToMessageId,omitempty"`
}

// Provisional reports whether the message is a local placeholder
// awaiting server confirmation.
func (m *Message) Provisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// Sender is the embedded author profile on a message.
type Sender struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Image     string `json:"image,omitempty"`
}

// Attachment is one entry of a message's structured attachment list.
type Attachment struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}
