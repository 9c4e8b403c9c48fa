package dto

import "time"

// Conversation describes one inbox thread as the UI renders it. Typing and
// online flags are derived at response time, never stored.
type Conversation struct {
	ID            string    `json:"id"`
	AdopterID     string    `json:"adopter_id"`
	RehomerID     string    `json:"rehomer_id"`
	AnimalID      string    `json:"animal_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`

	UnreadCount             int    `json:"unread_count"`
	OtherUserName           string `json:"other_user_name,omitempty"`
	OtherUserProfilePicture string `json:"other_user_profile_picture,omitempty"`
	AnimalName              string `json:"animal_name,omitempty"`

	OtherPartyTyping bool `json:"other_party_typing"`
	OtherPartyOnline bool `json:"other_party_online"`
}

// ConversationList is a paginated collection.
type ConversationList struct {
	Items    []Conversation `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// ChatMessageList is a paginated message list.
type ChatMessageList struct {
	Items    []ChatMessage `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// StartConversationResult reports the two-step contact flow. SendError is set
// when the thread was resolved but the opening message failed; the UI retries
// just the send.
type StartConversationResult struct {
	Conversation Conversation `json:"conversation"`
	Message      *ChatMessage `json:"message,omitempty"`
	SendError    string       `json:"send_error,omitempty"`
}

// UnreadCount is the server-computed global unread total.
type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}

// PresenceList is the current online roster.
type PresenceList struct {
	Online []string `json:"online"`
}
