package policies

import (
	"context"

	"catmatch/internal/domain/chat"
)

// Gateway issues authenticated page-fetches and mutations against the hosted
// backend. Every response is schema-validated before it is returned; a
// malformed payload fails the call the same way a transport failure does.
type Gateway interface {
	ListConversations(ctx context.Context, userID chat.UserID, page, pageSize int) (chat.ConversationPage, error)
	ListMessages(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, page, pageSize int) (chat.MessagePage, error)
	SendMessage(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, content string) (chat.Message, error)
	GetOrCreateConversation(ctx context.Context, adopterID, rehomerID chat.UserID, animalID chat.AnimalID) (chat.Conversation, error)
	SetTypingStatus(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, isTyping bool) error
	MarkConversationRead(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID) error
	MarkMessageRead(ctx context.Context, userID chat.UserID, messageID chat.MessageID) (chat.ConversationID, error)
	GetUnreadCount(ctx context.Context, userID chat.UserID) (int, error)
}
