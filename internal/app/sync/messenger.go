package sync

import (
	"context"
	"log/slog"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// Messenger sends messages and keeps the cache honest about it. Every
// successful mutation invalidates on its own, independent of the change feed:
// missed feed events must not leave the sender staring at a stale thread.
type Messenger struct {
	gateway policies.Gateway
	cache   policies.Cache
	logger  *slog.Logger
}

func NewMessenger(gateway policies.Gateway, cache policies.Cache, logger *slog.Logger) *Messenger {
	return &Messenger{gateway: gateway, cache: cache, logger: logger}
}

// Send posts content into the conversation as userID. On success the
// conversation's message pages and the sender's inbox (ordering and
// last-message preview) go stale; the next read refetches both.
func (m *Messenger) Send(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, content string) (chat.Message, error) {
	message, err := m.gateway.SendMessage(ctx, userID, conversationID, content)
	if err != nil {
		return chat.Message{}, err
	}
	m.cache.Invalidate(ctx, MessagesKey(conversationID))
	m.cache.Invalidate(ctx, ConversationListKey(userID))
	if m.logger != nil {
		m.logger.Debug("message sent", "conversation_id", string(conversationID), "message_id", string(message.ID))
	}
	return message, nil
}
