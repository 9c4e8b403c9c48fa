package gateway

import (
	"time"

	"catmatch/internal/domain/chat"
)

// Wire shapes for the backend's chat API. Validation tags define the schema
// contract: a response that misses a required field fails the whole call.

type conversationPayload struct {
	ID            string    `json:"id" validate:"required"`
	AdopterID     string    `json:"adopter_id" validate:"required"`
	RehomerID     string    `json:"rehomer_id" validate:"required"`
	AnimalID      string    `json:"animal_id"`
	CreatedAt     time.Time `json:"created_at" validate:"required"`
	LastMessageAt time.Time `json:"last_message_at"`

	AdopterLastActiveAt time.Time `json:"adopter_last_active_at"`
	RehomerLastActiveAt time.Time `json:"rehomer_last_active_at"`
	AdopterLastReadAt   time.Time `json:"adopter_last_read_at"`
	RehomerLastReadAt   time.Time `json:"rehomer_last_read_at"`

	AdopterIsTyping     bool      `json:"adopter_is_typing"`
	RehomerIsTyping     bool      `json:"rehomer_is_typing"`
	AdopterLastTypingAt time.Time `json:"adopter_last_typing_at"`
	RehomerLastTypingAt time.Time `json:"rehomer_last_typing_at"`

	UnreadCount             int    `json:"unread_count" validate:"gte=0"`
	OtherUserName           string `json:"other_user_name"`
	OtherUserProfilePicture string `json:"other_user_profile_picture"`
	AnimalName              string `json:"animal_name"`
}

// toDomain builds the thread through the domain constructor so a row that
// violates its identity rules (same user on both sides, blank ids) fails the
// call instead of flowing downstream.
func (p conversationPayload) toDomain() (chat.Conversation, error) {
	conversation, err := chat.NewConversation(
		chat.ConversationID(p.ID),
		chat.UserID(p.AdopterID),
		chat.UserID(p.RehomerID),
		chat.AnimalID(p.AnimalID),
		p.CreatedAt,
	)
	if err != nil {
		return chat.Conversation{}, err
	}
	conversation.LastMessageAt = p.LastMessageAt
	conversation.AdopterLastActiveAt = p.AdopterLastActiveAt
	conversation.RehomerLastActiveAt = p.RehomerLastActiveAt
	conversation.AdopterLastReadAt = p.AdopterLastReadAt
	conversation.RehomerLastReadAt = p.RehomerLastReadAt
	conversation.AdopterIsTyping = p.AdopterIsTyping
	conversation.RehomerIsTyping = p.RehomerIsTyping
	conversation.AdopterLastTypingAt = p.AdopterLastTypingAt
	conversation.RehomerLastTypingAt = p.RehomerLastTypingAt
	conversation.UnreadCount = p.UnreadCount
	conversation.OtherUserName = p.OtherUserName
	conversation.OtherUserProfilePic = p.OtherUserProfilePicture
	conversation.AnimalName = p.AnimalName
	return conversation, nil
}

type messagePayload struct {
	ID             string     `json:"id" validate:"required"`
	ConversationID string     `json:"conversation_id" validate:"required"`
	SenderID       string     `json:"sender_id" validate:"required"`
	Content        string     `json:"content" validate:"required"`
	CreatedAt      time.Time  `json:"created_at" validate:"required"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at"`
}

func (p messagePayload) toDomain() chat.Message {
	return chat.Message{
		ID:             chat.MessageID(p.ID),
		ConversationID: chat.ConversationID(p.ConversationID),
		SenderID:       chat.UserID(p.SenderID),
		Content:        p.Content,
		CreatedAt:      p.CreatedAt,
		IsRead:         p.IsRead,
		ReadAt:         p.ReadAt,
	}
}

type conversationListPayload struct {
	Conversations []conversationPayload `json:"conversations" validate:"dive"`
	Total         int                   `json:"total" validate:"gte=0"`
	Page          int                   `json:"page" validate:"gte=1"`
	PageSize      int                   `json:"page_size" validate:"gte=1"`
}

type messageListPayload struct {
	Messages []messagePayload `json:"messages" validate:"dive"`
	Total    int              `json:"total" validate:"gte=0"`
	Page     int              `json:"page" validate:"gte=1"`
	PageSize int              `json:"page_size" validate:"gte=1"`
}

type successPayload struct {
	Success bool `json:"success"`
}
