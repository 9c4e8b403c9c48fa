package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

func snapshot(ids ...chat.UserID) policies.GroupEvent {
	members := make([]chat.PresenceEntry, 0, len(ids))
	for _, id := range ids {
		members = append(members, chat.PresenceEntry{UserID: id, OnlineAt: time.Now()})
	}
	return policies.GroupEvent{Kind: policies.GroupSync, Members: members}
}

func TestTrackerSyncReplacesRosterWholesale(t *testing.T) {
	group := &fakeGroup{}
	tracker := NewTracker(group, nil)
	tracker.Track(context.Background(), "user-1")
	assert.Equal(t, 1, group.announces)

	group.onEvent(snapshot("user-1", "user-2"))
	assert.True(t, tracker.IsOnline("user-1"))
	assert.True(t, tracker.IsOnline("user-2"))

	// The next snapshot omits user-2; the roster must not keep it.
	group.onEvent(snapshot("user-1"))
	assert.True(t, tracker.IsOnline("user-1"))
	assert.False(t, tracker.IsOnline("user-2"))
	assert.Equal(t, []chat.UserID{"user-1"}, tracker.OnlineUserIDs())
}

func TestTrackerJoinLeaveEventsAreInformational(t *testing.T) {
	group := &fakeGroup{}
	tracker := NewTracker(group, nil)
	tracker.Track(context.Background(), "user-1")

	group.onEvent(snapshot("user-1"))
	member := chat.PresenceEntry{UserID: "user-2", OnlineAt: time.Now()}
	group.onEvent(policies.GroupEvent{Kind: policies.GroupJoin, Member: &member})

	// Membership changes only on sync.
	assert.False(t, tracker.IsOnline("user-2"))
}

func TestTrackerOnChangeFiresPerSync(t *testing.T) {
	group := &fakeGroup{}
	tracker := NewTracker(group, nil)
	var rosters [][]chat.UserID
	tracker.OnChange = func(ids []chat.UserID) {
		rosters = append(rosters, ids)
	}
	tracker.Track(context.Background(), "user-1")

	group.onEvent(snapshot("user-2", "user-1"))
	group.onEvent(snapshot("user-1"))

	assert.Equal(t, [][]chat.UserID{
		{"user-1", "user-2"},
		{"user-1"},
	}, rosters)
}

func TestTrackerFailedJoinKeepsEmptyRoster(t *testing.T) {
	group := &fakeGroup{joinErr: errors.New("no transport")}
	tracker := NewTracker(group, nil)

	tracker.Track(context.Background(), "user-1")

	assert.Empty(t, tracker.OnlineUserIDs())
	assert.Equal(t, 0, group.announces)

	// Stop after a failed join must not attempt a leave.
	tracker.Stop(context.Background())
	assert.Equal(t, 0, group.leaves)
}

func TestTrackerStopLeavesOnce(t *testing.T) {
	group := &fakeGroup{}
	tracker := NewTracker(group, nil)
	tracker.Track(context.Background(), "user-1")

	tracker.Stop(context.Background())
	tracker.Stop(context.Background())
	assert.Equal(t, 1, group.leaves)
}
