package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// Feed opens change-feed channels over Kafka topics. The backend publishes
// one event per row mutation, keyed by conversation id, so every channel
// observes its conversation's events in commit order. Each OpenChannel gets
// its own consumer group: channels are independent fan-out subscribers, not
// load-balanced workers.
type Feed struct {
	brokers     []string
	clientID    string
	topicPrefix string
	logger      *slog.Logger
}

func NewFeed(brokers []string, clientID, topicPrefix string, logger *slog.Logger) *Feed {
	return &Feed{brokers: brokers, clientID: clientID, topicPrefix: topicPrefix, logger: logger}
}

// OpenChannel prepares a channel for topic; nothing is consumed until
// Subscribe. Offsets start at newest: a change feed recovers through the next
// invalidation or refetch, it does not replay missed events.
func (f *Feed) OpenChannel(topic string, filter policies.ChannelFilter) (policies.Channel, error) {
	if topic == "" {
		return nil, errors.New("kafka feed: topic required")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = f.clientID
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	groupID := f.clientID + "-" + uuid.NewString()
	group, err := sarama.NewConsumerGroup(f.brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &channel{
		group:    group,
		topic:    f.topicPrefix + topic,
		filter:   filter,
		logger:   f.logger,
		handlers: make(map[chat.EventKind][]func(chat.FeedEvent)),
	}, nil
}

type channel struct {
	group  sarama.ConsumerGroup
	topic  string
	filter policies.ChannelFilter
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[chat.EventKind][]func(chat.FeedEvent)
	status   func(policies.ChannelStatus)
	cancel   context.CancelFunc
	done     chan struct{}
}

func (c *channel) On(kind chat.EventKind, handler func(chat.FeedEvent)) {
	c.mu.Lock()
	c.handlers[kind] = append(c.handlers[kind], handler)
	c.mu.Unlock()
}

// Subscribe starts the consume loop. Consume errors report a degraded status
// and the loop retries; delivery resumes once the group rebalances back.
func (c *channel) Subscribe(status func(policies.ChannelStatus)) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("kafka feed: channel already subscribed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.status = status
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		for {
			err := c.group.Consume(ctx, []string{c.topic}, groupHandler{ch: c})
			if ctx.Err() != nil {
				c.report(policies.ChannelClosed)
				return
			}
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("change feed consume failed", "topic", c.topic, "error", err)
				}
				c.report(policies.ChannelDegraded)
				select {
				case <-ctx.Done():
					c.report(policies.ChannelClosed)
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()
	return nil
}

func (c *channel) Unsubscribe() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return c.group.Close()
	}
	cancel()
	<-done
	return c.group.Close()
}

func (c *channel) report(st policies.ChannelStatus) {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	if status != nil {
		status(st)
	}
}

func (c *channel) dispatch(msg *sarama.ConsumerMessage) {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		// At-least-once tolerates a bad payload; skip it.
		if c.logger != nil {
			c.logger.Warn("change feed payload rejected", "topic", c.topic, "error", err)
		}
		return
	}
	if c.filter.ConversationID != "" && !eventMatchesConversation(event, c.filter.ConversationID) {
		return
	}
	c.mu.Lock()
	handlers := append(([]func(chat.FeedEvent))(nil), c.handlers[event.Kind]...)
	c.mu.Unlock()
	for _, handler := range handlers {
		handler(event)
	}
}

func eventMatchesConversation(event chat.FeedEvent, id chat.ConversationID) bool {
	for _, row := range []*chat.Row{event.New, event.Old} {
		if row != nil && row.ConversationID == id {
			return true
		}
	}
	return false
}

type groupHandler struct {
	ch *channel
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.ch.report(policies.ChannelSubscribed)
	return nil
}

func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.ch.dispatch(message)
		sess.MarkMessage(message, "")
	}
	return nil
}
