package models

// ChatType distinguishes two-party conversations from multi-party groups.
type ChatType string

const (
	ChatPrivate ChatType = "PRIVATE"
	ChatGroup   ChatType = "GROUP"
)

// Chat is a conversation. Private chats carry a participant list; group
// chats carry an embedded group with its memberships. The most recent
// messages are embedded for preview use.
type Chat struct {
	// ID is the stable, server-assigned identifier
	ID string `json:"id"`

	Type ChatType `json:"type"`

	// Name is the display name; empty for private chats, where the
	// name is derived from the peer participant
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	ParticipantIDs []string `json:"participantIds,omitempty"`

	// Messages holds the most recent messages embedded for preview
	Messages []Message `json:"messages"`

	Group        *Group        `json:"group,omitempty"`
	Participants []Participant `json:"participants,omitempty"`

	// UpdatedAt is the last-activity timestamp
	UpdatedAt string `json:"updatedAt"`
}

// Group is the embedded group record on a GROUP chat.
type Group struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Memberships []Membership `json:"memberships"`
}

// Membership links a user to a group.
type Membership struct {
	User Participant `json:"user"`
}

// Participant is a user profile embedded in a chat.
type Participant struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Image     string `json:"image,omitempty"`
}
