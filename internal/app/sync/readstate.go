package sync

import (
	"context"
	"log/slog"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// ReadState marks conversations and messages read and keeps unread counts
// consistent. Both operations are idempotent at the backend: re-marking is a
// no-op there, and re-invalidating here only schedules a refetch that
// observes no change, so retries cannot flicker the UI.
type ReadState struct {
	gateway policies.Gateway
	cache   policies.Cache
	logger  *slog.Logger
}

func NewReadState(gateway policies.Gateway, cache policies.Cache, logger *slog.Logger) *ReadState {
	return &ReadState{gateway: gateway, cache: cache, logger: logger}
}

// MarkConversationRead bulk-marks everything unread in the conversation as
// read for userID. Invoked whenever a conversation becomes the open one.
func (r *ReadState) MarkConversationRead(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID) error {
	if err := r.gateway.MarkConversationRead(ctx, userID, conversationID); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, MessagesKey(conversationID))
	r.cache.Invalidate(ctx, UnreadCountKey(userID))
	return nil
}

// MarkMessageRead marks one individually-observed incoming message, e.g. as
// it scrolls into view.
func (r *ReadState) MarkMessageRead(ctx context.Context, userID chat.UserID, messageID chat.MessageID) error {
	conversationID, err := r.gateway.MarkMessageRead(ctx, userID, messageID)
	if err != nil {
		return err
	}
	r.cache.Invalidate(ctx, MessagesKey(conversationID))
	r.cache.Invalidate(ctx, UnreadCountKey(userID))
	return nil
}
