package policies

import "catmatch/internal/domain/chat"

// ChannelStatus reports transport health for one open channel.
type ChannelStatus string

const (
	ChannelSubscribed ChannelStatus = "subscribed"
	ChannelDegraded   ChannelStatus = "degraded"
	ChannelClosed     ChannelStatus = "closed"
)

// ChannelFilter narrows a channel to one conversation when the transport can
// filter server-side. The zero value means no filtering; relevance is then
// applied client-side by the subscriber.
type ChannelFilter struct {
	ConversationID chat.ConversationID
}

// Channel is one logical ordered, at-least-once change-feed scope.
type Channel interface {
	// On registers a handler for one event kind. All registration happens
	// before Subscribe.
	On(kind chat.EventKind, handler func(chat.FeedEvent))
	// Subscribe opens the channel and reports status transitions. A degraded
	// status is informational; delivery resumes on reconnect without replay.
	Subscribe(status func(ChannelStatus)) error
	// Unsubscribe closes the channel. A channel left open after its scope is
	// no longer observed is a resource leak.
	Unsubscribe() error
}

// Feed opens change-feed channels by topic.
type Feed interface {
	OpenChannel(topic string, filter ChannelFilter) (Channel, error)
}
