package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

func TestSubscribeMessagesInvalidatesOnEveryKind(t *testing.T) {
	feed := &fakeFeed{}
	cache := newFakeCache()
	sub := NewSubscriber(feed, cache, Topics{}, nil)

	subscription, err := sub.SubscribeMessages("conv-1", "user-1")
	require.NoError(t, err)
	defer subscription.Close()

	ch := feed.last()
	require.NotNil(t, ch)
	assert.Equal(t, DefaultTopics.Messages, ch.topic)
	assert.Equal(t, chat.ConversationID("conv-1"), ch.filter.ConversationID)
	assert.True(t, ch.subscribed)

	row := &chat.Row{ConversationID: "conv-1", MessageID: "msg-1", SenderID: "user-2"}
	ch.emit(chat.FeedEvent{Kind: chat.EventInserted, Table: chat.TableMessages, New: row})

	assert.Equal(t, []string{
		MessagesKey("conv-1"),
		ConversationListKey("user-1"),
		UnreadCountKey("user-1"),
	}, cache.invalidations())
}

func TestSubscribeMessagesDeleteSkipsUnread(t *testing.T) {
	feed := &fakeFeed{}
	cache := newFakeCache()
	sub := NewSubscriber(feed, cache, Topics{}, nil)

	subscription, err := sub.SubscribeMessages("conv-1", "user-1")
	require.NoError(t, err)
	defer subscription.Close()

	row := &chat.Row{ConversationID: "conv-1", MessageID: "msg-1"}
	feed.last().emit(chat.FeedEvent{Kind: chat.EventDeleted, Table: chat.TableMessages, Old: row})

	invalidated := cache.invalidations()
	assert.Contains(t, invalidated, MessagesKey("conv-1"))
	assert.Contains(t, invalidated, ConversationListKey("user-1"))
	assert.NotContains(t, invalidated, UnreadCountKey("user-1"))
}

func TestSubscribeConversationsRelevanceFilter(t *testing.T) {
	feed := &fakeFeed{}
	cache := newFakeCache()
	sub := NewSubscriber(feed, cache, Topics{}, nil)

	subscription, err := sub.SubscribeConversations("user-1")
	require.NoError(t, err)
	defer subscription.Close()

	ch := feed.last()
	assert.Equal(t, DefaultTopics.Conversations, ch.topic)
	assert.Empty(t, ch.filter.ConversationID)

	// An event between two other users drops with zero cache effect.
	ch.emit(chat.FeedEvent{
		Kind:  chat.EventInserted,
		Table: chat.TableConversations,
		New:   &chat.Row{ConversationID: "conv-9", AdopterID: "user-7", RehomerID: "user-8"},
	})
	assert.Empty(t, cache.invalidations())

	// A relevant insert invalidates the inbox and the unread count.
	ch.emit(chat.FeedEvent{
		Kind:  chat.EventInserted,
		Table: chat.TableConversations,
		New:   &chat.Row{ConversationID: "conv-1", AdopterID: "user-1", RehomerID: "user-2", LastMessageAt: time.Now()},
	})
	assert.Equal(t, []string{ConversationListKey("user-1"), UnreadCountKey("user-1")}, cache.invalidations())
}

func TestSubscribeConversationsDeleteInvalidatesInboxOnly(t *testing.T) {
	feed := &fakeFeed{}
	cache := newFakeCache()
	sub := NewSubscriber(feed, cache, Topics{}, nil)

	subscription, err := sub.SubscribeConversations("user-1")
	require.NoError(t, err)
	defer subscription.Close()

	feed.last().emit(chat.FeedEvent{
		Kind:  chat.EventDeleted,
		Table: chat.TableConversations,
		Old:   &chat.Row{ConversationID: "conv-1", AdopterID: "user-1", RehomerID: "user-2"},
	})

	assert.Equal(t, []string{ConversationListKey("user-1")}, cache.invalidations())
}

func TestSubscriptionCloseIsTerminal(t *testing.T) {
	feed := &fakeFeed{}
	sub := NewSubscriber(feed, newFakeCache(), Topics{}, nil)

	subscription, err := sub.SubscribeMessages("conv-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, subscription.Close())
	assert.True(t, feed.last().unsubscribed)
	assert.ErrorIs(t, subscription.Close(), ErrSubscriberClosed)
}

func TestDegradedStatusLeavesCacheIntact(t *testing.T) {
	feed := &fakeFeed{}
	cache := newFakeCache()
	sub := NewSubscriber(feed, cache, Topics{}, nil)

	subscription, err := sub.SubscribeMessages("conv-1", "user-1")
	require.NoError(t, err)
	defer subscription.Close()

	ch := feed.last()
	ch.status(policies.ChannelDegraded)
	ch.status(policies.ChannelSubscribed)

	assert.Empty(t, cache.invalidations())
}
