package sync

import (
	"context"
	"errors"
	stdsync "sync"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// fakeCache records invalidations and serves a plain map.
type fakeCache struct {
	mu          stdsync.Mutex
	values      map[string]any
	invalidated []string
	writes      []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]any{}}
}

func (f *fakeCache) Read(_ context.Context, key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeCache) Write(_ context.Context, key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.writes = append(f.writes, key)
}

func (f *fakeCache) Invalidate(_ context.Context, keyPrefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, keyPrefix)
}

func (f *fakeCache) invalidations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

// fakeGateway answers every call from configurable funcs; unset funcs succeed
// with zero values.
type fakeGateway struct {
	mu    stdsync.Mutex
	calls []string

	listConversationsFn func(chat.UserID, int, int) (chat.ConversationPage, error)
	listMessagesFn      func(chat.ConversationID, int, int) (chat.MessagePage, error)
	sendMessageFn       func(chat.UserID, chat.ConversationID, string) (chat.Message, error)
	getOrCreateFn       func(chat.UserID, chat.UserID, chat.AnimalID) (chat.Conversation, error)
	setTypingFn         func(chat.UserID, chat.ConversationID, bool) error
	markConversationFn  func(chat.UserID, chat.ConversationID) error
	markMessageFn       func(chat.UserID, chat.MessageID) (chat.ConversationID, error)
	getUnreadFn         func(chat.UserID) (int, error)
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeGateway) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) ListConversations(_ context.Context, userID chat.UserID, page, pageSize int) (chat.ConversationPage, error) {
	f.record("ListConversations")
	if f.listConversationsFn != nil {
		return f.listConversationsFn(userID, page, pageSize)
	}
	return chat.ConversationPage{Page: page, PageSize: pageSize}, nil
}

func (f *fakeGateway) ListMessages(_ context.Context, _ chat.UserID, conversationID chat.ConversationID, page, pageSize int) (chat.MessagePage, error) {
	f.record("ListMessages")
	if f.listMessagesFn != nil {
		return f.listMessagesFn(conversationID, page, pageSize)
	}
	return chat.MessagePage{Page: page, PageSize: pageSize}, nil
}

func (f *fakeGateway) SendMessage(_ context.Context, userID chat.UserID, conversationID chat.ConversationID, content string) (chat.Message, error) {
	f.record("SendMessage")
	if f.sendMessageFn != nil {
		return f.sendMessageFn(userID, conversationID, content)
	}
	return chat.Message{ID: "msg-1", ConversationID: conversationID, SenderID: userID, Content: content}, nil
}

func (f *fakeGateway) GetOrCreateConversation(_ context.Context, adopterID, rehomerID chat.UserID, animalID chat.AnimalID) (chat.Conversation, error) {
	f.record("GetOrCreateConversation")
	if f.getOrCreateFn != nil {
		return f.getOrCreateFn(adopterID, rehomerID, animalID)
	}
	return chat.Conversation{ID: "conv-1", AdopterID: adopterID, RehomerID: rehomerID, AnimalID: animalID}, nil
}

func (f *fakeGateway) SetTypingStatus(_ context.Context, userID chat.UserID, conversationID chat.ConversationID, isTyping bool) error {
	if isTyping {
		f.record("SetTypingStatus:true")
	} else {
		f.record("SetTypingStatus:false")
	}
	if f.setTypingFn != nil {
		return f.setTypingFn(userID, conversationID, isTyping)
	}
	return nil
}

func (f *fakeGateway) MarkConversationRead(_ context.Context, userID chat.UserID, conversationID chat.ConversationID) error {
	f.record("MarkConversationRead")
	if f.markConversationFn != nil {
		return f.markConversationFn(userID, conversationID)
	}
	return nil
}

func (f *fakeGateway) MarkMessageRead(_ context.Context, userID chat.UserID, messageID chat.MessageID) (chat.ConversationID, error) {
	f.record("MarkMessageRead")
	if f.markMessageFn != nil {
		return f.markMessageFn(userID, messageID)
	}
	return "conv-1", nil
}

func (f *fakeGateway) GetUnreadCount(_ context.Context, userID chat.UserID) (int, error) {
	f.record("GetUnreadCount")
	if f.getUnreadFn != nil {
		return f.getUnreadFn(userID)
	}
	return 0, nil
}

var _ policies.Gateway = (*fakeGateway)(nil)
var _ policies.Cache = (*fakeCache)(nil)

// fakeFeed hands out fakeChannels and remembers them by topic.
type fakeFeed struct {
	mu       stdsync.Mutex
	channels []*fakeChannel
	openErr  error
}

func (f *fakeFeed) OpenChannel(topic string, filter policies.ChannelFilter) (policies.Channel, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := &fakeChannel{topic: topic, filter: filter, handlers: map[chat.EventKind][]func(chat.FeedEvent){}}
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeFeed) last() *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.channels) == 0 {
		return nil
	}
	return f.channels[len(f.channels)-1]
}

type fakeChannel struct {
	topic    string
	filter   policies.ChannelFilter
	handlers map[chat.EventKind][]func(chat.FeedEvent)

	subscribed   bool
	unsubscribed bool
	status       func(policies.ChannelStatus)
	subscribeErr error
}

func (c *fakeChannel) On(kind chat.EventKind, handler func(chat.FeedEvent)) {
	c.handlers[kind] = append(c.handlers[kind], handler)
}

func (c *fakeChannel) Subscribe(status func(policies.ChannelStatus)) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.subscribed = true
	c.status = status
	if status != nil {
		status(policies.ChannelSubscribed)
	}
	return nil
}

func (c *fakeChannel) Unsubscribe() error {
	if c.unsubscribed {
		return errors.New("already unsubscribed")
	}
	c.unsubscribed = true
	return nil
}

func (c *fakeChannel) emit(ev chat.FeedEvent) {
	for _, h := range c.handlers[ev.Kind] {
		h(ev)
	}
}

var _ policies.Feed = (*fakeFeed)(nil)

// fakeGroup captures the join handler so tests drive membership events.
type fakeGroup struct {
	onEvent   func(policies.GroupEvent)
	joinErr   error
	announces int
	leaves    int
}

func (g *fakeGroup) Join(_ context.Context, _ chat.PresenceEntry, onEvent func(policies.GroupEvent)) error {
	if g.joinErr != nil {
		return g.joinErr
	}
	g.onEvent = onEvent
	return nil
}

func (g *fakeGroup) Announce(context.Context, chat.PresenceEntry) error {
	g.announces++
	return nil
}

func (g *fakeGroup) Leave(context.Context) error {
	g.leaves++
	return nil
}

var _ policies.BroadcastGroup = (*fakeGroup)(nil)
