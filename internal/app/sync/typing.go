package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

type composeKey struct {
	user         chat.UserID
	conversation chat.ConversationID
}

// Coordinator turns local compose-box input into typing-status updates with
// debounce and auto-expiry. For one (user, conversation) pair there is never
// more than one pending expiry timer: every update cancels and replaces the
// previous one.
type Coordinator struct {
	gateway policies.Gateway
	logger  *slog.Logger

	// Expiry is how long a typing=true survives without further input before
	// a typing=false is sent. Zero means chat.TypingExpiry.
	Expiry time.Duration

	mu     stdsync.Mutex
	timers map[composeKey]*time.Timer
}

func NewCoordinator(gateway policies.Gateway, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		gateway: gateway,
		logger:  logger,
		timers:  make(map[composeKey]*time.Timer),
	}
}

// SetComposing reacts to a compose-box change. Non-empty input sends
// typing=true now (repeated trues are idempotent) and schedules typing=false
// after the expiry; an emptied box sends typing=false now and cancels the
// pending timer.
func (c *Coordinator) SetComposing(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, hasText bool) {
	key := composeKey{user: userID, conversation: conversationID}

	c.mu.Lock()
	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}
	if hasText {
		var timer *time.Timer
		timer = time.AfterFunc(c.expiry(), func() {
			c.mu.Lock()
			// Only the latest timer clears; a re-armed one replaced us.
			if c.timers[key] == timer {
				delete(c.timers, key)
			} else {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			c.send(context.Background(), userID, conversationID, false)
		})
		c.timers[key] = timer
	}
	c.mu.Unlock()

	c.send(ctx, userID, conversationID, hasText)
}

// Stop cancels every pending expiry timer. Called on teardown so no timer
// keeps firing status updates nobody reads.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
}

// send is best-effort: typing indicators never block message sending and
// never surface user-facing errors.
func (c *Coordinator) send(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, isTyping bool) {
	if err := c.gateway.SetTypingStatus(ctx, userID, conversationID, isTyping); err != nil && c.logger != nil {
		c.logger.Debug("typing status send failed",
			"user_id", string(userID), "conversation_id", string(conversationID), "is_typing", isTyping, "error", err)
	}
}

func (c *Coordinator) expiry() time.Duration {
	if c.Expiry > 0 {
		return c.Expiry
	}
	return chat.TypingExpiry
}

func (c *Coordinator) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
