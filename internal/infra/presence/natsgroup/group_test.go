package natsgroup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

func wirePayload(t *testing.T, kind, userID string) *nats.Msg {
	t.Helper()
	payload, err := json.Marshal(wireMessage{Kind: kind, UserID: userID, OnlineAt: time.Now().UTC()})
	require.NoError(t, err)
	return &nats.Msg{Data: payload}
}

func collectingGroup() (*Group, *[]policies.GroupEvent) {
	group := NewGroup(nil, "test.presence", Options{}, nil)
	events := &[]policies.GroupEvent{}
	group.onEvent = func(ev policies.GroupEvent) {
		*events = append(*events, ev)
	}
	return group, events
}

func lastSync(events []policies.GroupEvent) ([]chat.UserID, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == policies.GroupSync {
			ids := make([]chat.UserID, 0, len(events[i].Members))
			for _, m := range events[i].Members {
				ids = append(ids, m.UserID)
			}
			return ids, true
		}
	}
	return nil, false
}

func TestReceiveAnnounceFoldsNewMember(t *testing.T) {
	group, events := collectingGroup()

	group.receive(wirePayload(t, "announce", "user-1"))

	require.Len(t, *events, 2)
	assert.Equal(t, policies.GroupJoin, (*events)[0].Kind)
	assert.Equal(t, chat.UserID("user-1"), (*events)[0].Member.UserID)
	roster, ok := lastSync(*events)
	require.True(t, ok)
	assert.Equal(t, []chat.UserID{"user-1"}, roster)
}

func TestReceiveRepeatedAnnounceIsQuiet(t *testing.T) {
	group, events := collectingGroup()

	group.receive(wirePayload(t, "announce", "user-1"))
	before := len(*events)

	// A heartbeat from a known member refreshes its timestamp only.
	group.receive(wirePayload(t, "announce", "user-1"))
	assert.Len(t, *events, before)
}

func TestReceiveLeaveDropsMember(t *testing.T) {
	group, events := collectingGroup()

	group.receive(wirePayload(t, "announce", "user-1"))
	group.receive(wirePayload(t, "announce", "user-2"))
	group.receive(wirePayload(t, "leave", "user-1"))

	roster, ok := lastSync(*events)
	require.True(t, ok)
	assert.Equal(t, []chat.UserID{"user-2"}, roster)

	// A leave for an unknown member emits nothing.
	before := len(*events)
	group.receive(wirePayload(t, "leave", "user-9"))
	assert.Len(t, *events, before)
}

func TestReceiveRejectsMalformedPayloads(t *testing.T) {
	group, events := collectingGroup()

	group.receive(&nats.Msg{Data: []byte("not json")})
	group.receive(wirePayload(t, "announce", ""))

	assert.Empty(t, *events)
}

func TestExpireAgesOutSilentMembers(t *testing.T) {
	group, _ := collectingGroup()

	group.receive(wirePayload(t, "announce", "user-1"))
	group.receive(wirePayload(t, "announce", "user-2"))

	// Backdate user-1's last heartbeat past the expiry window.
	group.mu.Lock()
	group.members["user-1"] = time.Now().Add(-group.opts.Expiry - time.Second)
	group.mu.Unlock()

	assert.True(t, group.expire(time.Now()))

	group.mu.Lock()
	_, gone := group.members["user-1"]
	_, kept := group.members["user-2"]
	group.mu.Unlock()
	assert.False(t, gone)
	assert.True(t, kept)

	// Nothing left to expire.
	assert.False(t, group.expire(time.Now()))
}

func TestOptionsNormalization(t *testing.T) {
	opts := Options{}
	opts.norm()
	assert.Equal(t, 5*time.Second, opts.Heartbeat)
	assert.Equal(t, 15*time.Second, opts.Expiry)

	opts = Options{Heartbeat: 2 * time.Second, Expiry: time.Second}
	opts.norm()
	// Expiry below the heartbeat would flap membership on every tick.
	assert.Equal(t, 6*time.Second, opts.Expiry)
}
