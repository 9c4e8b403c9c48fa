package sync

import (
	"context"
	"log/slog"
	"sort"
	stdsync "sync"
	"time"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// Tracker maintains the set of currently-online user ids from broadcast group
// membership. State is rebuilt wholesale from every sync snapshot, so a
// missed join or leave heals itself on the next snapshot.
type Tracker struct {
	group  policies.BroadcastGroup
	logger *slog.Logger

	// OnChange, when set, receives the roster after every sync. Wired before
	// Track is called.
	OnChange func([]chat.UserID)

	mu     stdsync.RWMutex
	online map[chat.UserID]time.Time
	joined bool
	self   chat.PresenceEntry
}

func NewTracker(group policies.BroadcastGroup, logger *slog.Logger) *Tracker {
	return &Tracker{
		group:  group,
		logger: logger,
		online: make(map[chat.UserID]time.Time),
	}
}

// Track joins the global roster as userID and announces its own presence so
// other clients' snapshots include it. A failed join is not an error to the
// caller: the tracker keeps an empty roster, which renders as nobody online
// rather than a broken screen. No retry happens here.
func (t *Tracker) Track(ctx context.Context, userID chat.UserID) {
	self := chat.PresenceEntry{UserID: userID, OnlineAt: time.Now().UTC()}
	if err := t.group.Join(ctx, self, t.handle); err != nil {
		if t.logger != nil {
			t.logger.Warn("presence join failed", "user_id", string(userID), "error", err)
		}
		return
	}
	t.mu.Lock()
	t.joined = true
	t.self = self
	t.mu.Unlock()
	if err := t.group.Announce(ctx, self); err != nil && t.logger != nil {
		t.logger.Warn("presence announce failed", "user_id", string(userID), "error", err)
	}
}

// Stop leaves the group. If the leave never reaches the transport (tab
// closed, process killed) the group's heartbeat timeout ages the entry out.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	joined := t.joined
	t.joined = false
	t.mu.Unlock()
	if !joined {
		return
	}
	if err := t.group.Leave(ctx); err != nil && t.logger != nil {
		t.logger.Warn("presence leave failed", "error", err)
	}
}

// IsOnline reports whether id appeared in the latest membership snapshot.
func (t *Tracker) IsOnline(id chat.UserID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[id]
	return ok
}

// OnlineUserIDs returns the current roster, sorted for stable output.
func (t *Tracker) OnlineUserIDs() []chat.UserID {
	t.mu.RLock()
	ids := make([]chat.UserID, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Tracker) handle(ev policies.GroupEvent) {
	switch ev.Kind {
	case policies.GroupSync:
		next := make(map[chat.UserID]time.Time, len(ev.Members))
		for _, m := range ev.Members {
			next[m.UserID] = m.OnlineAt
		}
		t.mu.Lock()
		t.online = next
		t.mu.Unlock()
		if t.OnChange != nil {
			t.OnChange(t.OnlineUserIDs())
		}
	case policies.GroupJoin, policies.GroupLeave:
		// Informational only; the next sync is authoritative.
		if t.logger != nil && ev.Member != nil {
			t.logger.Debug("presence membership event", "kind", string(ev.Kind), "user_id", string(ev.Member.UserID))
		}
	}
}
