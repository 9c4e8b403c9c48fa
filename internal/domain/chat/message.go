package chat

import (
	"errors"
	"time"
)

var (
	ErrMessageIDRequired = errors.New("chat: message id is required")
	ErrContentRequired   = errors.New("chat: message content is required")
)

// Message belongs to exactly one conversation and is never deleted here;
// after creation only its read state changes.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	Content        string
	CreatedAt      time.Time
	IsRead         bool
	ReadAt         *time.Time
}

// MessagePage is one fetched page of a conversation's history.
type MessagePage struct {
	Messages []Message
	Total    int
	Page     int
	PageSize int
}

// PresenceEntry is an in-memory roster record; it is never persisted.
type PresenceEntry struct {
	UserID   UserID
	OnlineAt time.Time
}
