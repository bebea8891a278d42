package models

// User is the authenticated user's profile, learned from the server
// handshake or a user_info event.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Image     string `json:"image,omitempty"`
}

// TypingUser is the ephemeral signal that a user is composing in a chat.
// At most one entry exists per (UserID, ChatID) pair.
type TypingUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	ChatID   string `json:"chatId"`
}

// PendingInvitation is an outstanding group invitation awaiting the
// local user's decision. Keyed by GroupID.
type PendingInvitation struct {
	GroupID     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	Description string `json:"description,omitempty"`
}
