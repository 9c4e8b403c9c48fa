package policies

import (
	"context"

	"catmatch/internal/domain/chat"
)

// GroupEventKind classifies presence group notifications.
type GroupEventKind string

const (
	// GroupSync carries a full membership snapshot; consumers replace their
	// roster wholesale, which self-heals any missed join/leave.
	GroupSync GroupEventKind = "sync"
	// GroupJoin and GroupLeave are informational; the next sync is
	// authoritative.
	GroupJoin  GroupEventKind = "join"
	GroupLeave GroupEventKind = "leave"
)

// GroupEvent is one presence group notification. Members is set for sync,
// Member for join/leave.
type GroupEvent struct {
	Kind    GroupEventKind
	Members []chat.PresenceEntry
	Member  *chat.PresenceEntry
}

// BroadcastGroup is an ephemeral "who is online" roster. Membership ages out
// via the transport's own heartbeat timeout when a leave is never delivered.
type BroadcastGroup interface {
	Join(ctx context.Context, self chat.PresenceEntry, onEvent func(GroupEvent)) error
	Announce(ctx context.Context, self chat.PresenceEntry) error
	Leave(ctx context.Context) error
}
