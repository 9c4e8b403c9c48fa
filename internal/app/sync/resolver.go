package sync

import (
	"fmt"
	"log/slog"

	"context"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// FirstMessageError reports that a conversation was created or reused but the
// initial message send failed. The thread now exists with no message; the
// caller retries just the send.
type FirstMessageError struct {
	Conversation chat.Conversation
	Err          error
}

func (e *FirstMessageError) Error() string {
	return fmt.Sprintf("sync: conversation %s resolved but first message failed: %v", e.Conversation.ID, e.Err)
}

func (e *FirstMessageError) Unwrap() error { return e.Err }

// Resolver creates-or-reuses the unique conversation for an (adopter,
// rehomer, animal) triple. The decision is one atomic backend call; the
// client never read-then-writes, which would race under a double-click or a
// second tab.
type Resolver struct {
	gateway   policies.Gateway
	cache     policies.Cache
	messenger *Messenger
	logger    *slog.Logger
}

func NewResolver(gateway policies.Gateway, cache policies.Cache, messenger *Messenger, logger *slog.Logger) *Resolver {
	return &Resolver{gateway: gateway, cache: cache, messenger: messenger, logger: logger}
}

// GetOrCreate resolves the conversation and invalidates the adopter's inbox
// so the thread shows up without a manual refresh. The rehomer's inbox
// catches up through the change feed.
func (r *Resolver) GetOrCreate(ctx context.Context, adopterID, rehomerID chat.UserID, animalID chat.AnimalID) (chat.Conversation, error) {
	conversation, err := r.gateway.GetOrCreateConversation(ctx, adopterID, rehomerID, animalID)
	if err != nil {
		return chat.Conversation{}, err
	}
	r.cache.Invalidate(ctx, ConversationListKey(adopterID))
	if r.logger != nil {
		r.logger.Info("conversation resolved",
			"conversation_id", string(conversation.ID), "adopter_id", string(adopterID),
			"rehomer_id", string(rehomerID), "animal_id", string(animalID))
	}
	return conversation, nil
}

// StartConversation resolves the thread and sends the opening message as two
// sequential dependent calls. When step one succeeds and step two fails the
// error is a *FirstMessageError carrying the live conversation.
func (r *Resolver) StartConversation(ctx context.Context, adopterID, rehomerID chat.UserID, animalID chat.AnimalID, content string) (chat.Conversation, chat.Message, error) {
	conversation, err := r.GetOrCreate(ctx, adopterID, rehomerID, animalID)
	if err != nil {
		return chat.Conversation{}, chat.Message{}, err
	}
	message, err := r.messenger.Send(ctx, adopterID, conversation.ID, content)
	if err != nil {
		return conversation, chat.Message{}, &FirstMessageError{Conversation: conversation, Err: err}
	}
	return conversation, message, nil
}
