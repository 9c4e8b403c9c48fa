package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrConversationIDRequired = errors.New("chat: conversation id is required")
	ErrParticipantsRequired   = errors.New("chat: adopter and rehomer ids are required")
	ErrSameParticipant        = errors.New("chat: adopter and rehomer must differ")
	ErrNotParticipant         = errors.New("chat: user is not a conversation participant")
)

// TypingExpiry bounds how long a stored typing flag stays meaningful. A flag
// older than this renders as not-typing even if its boolean is still true,
// because the clearing update can be lost in transit.
const TypingExpiry = 3 * time.Second

type (
	ConversationID string
	MessageID      string
	UserID         string
	AnimalID       string
)

// Conversation is one adopter<->rehomer thread, optionally tied to an animal
// listing. At most one conversation exists per (adopter, rehomer, animal)
// triple; the backend enforces that on create, never this client.
type Conversation struct {
	ID        ConversationID
	AdopterID UserID
	RehomerID UserID
	AnimalID  AnimalID

	CreatedAt     time.Time
	LastMessageAt time.Time

	AdopterLastActiveAt time.Time
	RehomerLastActiveAt time.Time
	AdopterLastReadAt   time.Time
	RehomerLastReadAt   time.Time

	AdopterIsTyping     bool
	RehomerIsTyping     bool
	AdopterLastTypingAt time.Time
	RehomerLastTypingAt time.Time

	// Server-derived per requesting user; never computed client-side.
	UnreadCount int

	// Denormalized display fields supplied by the fetch, not by the change feed.
	OtherUserName       string
	OtherUserProfilePic string
	AnimalName          string
}

// NewConversation validates the immutable identity of a thread.
func NewConversation(id ConversationID, adopterID, rehomerID UserID, animalID AnimalID, createdAt time.Time) (Conversation, error) {
	if strings.TrimSpace(string(id)) == "" {
		return Conversation{}, ErrConversationIDRequired
	}
	if strings.TrimSpace(string(adopterID)) == "" || strings.TrimSpace(string(rehomerID)) == "" {
		return Conversation{}, ErrParticipantsRequired
	}
	if adopterID == rehomerID {
		return Conversation{}, ErrSameParticipant
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return Conversation{
		ID:        id,
		AdopterID: adopterID,
		RehomerID: rehomerID,
		AnimalID:  animalID,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// HasParticipant reports whether id is one of the two thread members.
func (c Conversation) HasParticipant(id UserID) bool {
	return id != "" && (id == c.AdopterID || id == c.RehomerID)
}

// OtherParticipant returns the member that is not self.
func (c Conversation) OtherParticipant(self UserID) (UserID, error) {
	switch self {
	case c.AdopterID:
		return c.RehomerID, nil
	case c.RehomerID:
		return c.AdopterID, nil
	default:
		return "", ErrNotParticipant
	}
}

// OtherPartyTyping interprets the stored typing flag of whichever participant
// is not self. The flag is trusted only within TypingExpiry of its timestamp;
// a lost "stopped typing" update must not stick the indicator forever.
func (c Conversation) OtherPartyTyping(self UserID, now time.Time) bool {
	var flag bool
	var at time.Time
	switch self {
	case c.AdopterID:
		flag, at = c.RehomerIsTyping, c.RehomerLastTypingAt
	case c.RehomerID:
		flag, at = c.AdopterIsTyping, c.AdopterLastTypingAt
	default:
		return false
	}
	if !flag || at.IsZero() {
		return false
	}
	return now.Sub(at) <= TypingExpiry
}

// ConversationPage is one fetched page of a user's inbox.
type ConversationPage struct {
	Conversations []Conversation
	Total         int
	Page          int
	PageSize      int
}
