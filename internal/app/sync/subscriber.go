package sync

import (
	"context"
	"errors"
	"log/slog"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

var ErrSubscriberClosed = errors.New("sync: subscription already closed")

// Topics names the change-feed topics the subscriber listens on.
type Topics struct {
	Conversations string
	Messages      string
}

// DefaultTopics matches what the backend publishes.
var DefaultTopics = Topics{
	Conversations: "chat.conversations.events.v1",
	Messages:      "chat.messages.events.v1",
}

// Subscriber is the consistency engine: it listens for server-side mutations
// and invalidates Query Cache keys. It never writes rows into the cache, so
// the UI only ever renders gateway-validated data.
type Subscriber struct {
	feed   policies.Feed
	cache  policies.Cache
	topics Topics
	logger *slog.Logger
}

func NewSubscriber(feed policies.Feed, cache policies.Cache, topics Topics, logger *slog.Logger) *Subscriber {
	if topics.Conversations == "" {
		topics.Conversations = DefaultTopics.Conversations
	}
	if topics.Messages == "" {
		topics.Messages = DefaultTopics.Messages
	}
	return &Subscriber{feed: feed, cache: cache, topics: topics, logger: logger}
}

// Subscription is one open channel; Close releases it.
type Subscription struct {
	ch     policies.Channel
	closed bool
}

// Close unsubscribes the underlying channel. Leaving a channel open after its
// scope is no longer observed leaks the channel.
func (s *Subscription) Close() error {
	if s == nil || s.closed {
		return ErrSubscriberClosed
	}
	s.closed = true
	return s.ch.Unsubscribe()
}

// SubscribeMessages opens the message channel scoped to one conversation,
// for the viewing user. Any event means the conversation's message pages and
// the viewer's inbox ordering are stale; inserts and updates also move the
// unread count.
func (s *Subscriber) SubscribeMessages(conversationID chat.ConversationID, userID chat.UserID) (*Subscription, error) {
	ch, err := s.feed.OpenChannel(s.topics.Messages, policies.ChannelFilter{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	invalidate := func(ev chat.FeedEvent) {
		ctx := context.Background()
		s.cache.Invalidate(ctx, MessagesKey(conversationID))
		s.cache.Invalidate(ctx, ConversationListKey(userID))
		if ev.Kind == chat.EventInserted || ev.Kind == chat.EventUpdated {
			s.cache.Invalidate(ctx, UnreadCountKey(userID))
		}
	}
	ch.On(chat.EventInserted, invalidate)
	ch.On(chat.EventUpdated, invalidate)
	ch.On(chat.EventDeleted, invalidate)
	if err := ch.Subscribe(s.statusLogger("messages", string(conversationID))); err != nil {
		_ = ch.Unsubscribe()
		return nil, err
	}
	return &Subscription{ch: ch}, nil
}

// SubscribeConversations opens the user-scoped conversation channel. The
// transport cannot compound-filter, so every conversation event arrives here
// and relevance is decided client-side: an event matters iff either side of
// it names the subscribed user. Irrelevant events drop with no cache effect.
func (s *Subscriber) SubscribeConversations(userID chat.UserID) (*Subscription, error) {
	ch, err := s.feed.OpenChannel(s.topics.Conversations, policies.ChannelFilter{})
	if err != nil {
		return nil, err
	}
	invalidate := func(ev chat.FeedEvent) {
		if !ev.Concerns(userID) {
			return
		}
		ctx := context.Background()
		s.cache.Invalidate(ctx, ConversationListKey(userID))
		if ev.Kind == chat.EventInserted || ev.Kind == chat.EventUpdated {
			s.cache.Invalidate(ctx, UnreadCountKey(userID))
		}
	}
	ch.On(chat.EventInserted, invalidate)
	ch.On(chat.EventUpdated, invalidate)
	ch.On(chat.EventDeleted, invalidate)
	if err := ch.Subscribe(s.statusLogger("conversations", string(userID))); err != nil {
		_ = ch.Unsubscribe()
		return nil, err
	}
	return &Subscription{ch: ch}, nil
}

// statusLogger logs transport transitions and nothing else: a degraded
// channel leaves the previous cache state in place (stale but present) so a
// transient disconnect never blanks the UI. Correctness is recovered at the
// next invalidation or manual refetch after reconnect.
func (s *Subscriber) statusLogger(scope, id string) func(policies.ChannelStatus) {
	return func(st policies.ChannelStatus) {
		if s.logger == nil {
			return
		}
		switch st {
		case policies.ChannelDegraded:
			s.logger.Warn("change feed degraded", "scope", scope, "id", id)
		default:
			s.logger.Info("change feed status", "scope", scope, "id", id, "status", string(st))
		}
	}
}
