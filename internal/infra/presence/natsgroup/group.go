package natsgroup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// Dial connects to NATS with endless reconnect; presence is ephemeral, so a
// dropped connection simply re-announces on reconnect.
func Dial(servers []string, name string, logger *slog.Logger) (*nats.Conn, error) {
	if len(servers) == 0 {
		return nil, errors.New("natsgroup: servers required")
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(500 * time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3 * time.Second),
	}
	if logger != nil {
		opts = append(opts, nats.ReconnectHandler(func(*nats.Conn) {
			logger.Info("presence transport reconnected")
		}))
	}
	return nats.Connect(strings.Join(servers, ","), opts...)
}

// Options tunes the group's heartbeat protocol. Expiry must exceed Heartbeat
// so one dropped heartbeat does not flap membership.
type Options struct {
	Heartbeat time.Duration
	Expiry    time.Duration
}

func (o *Options) norm() {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 5 * time.Second
	}
	if o.Expiry <= o.Heartbeat {
		o.Expiry = 3 * o.Heartbeat
	}
}

type wireMessage struct {
	Kind     string    `json:"kind"` // announce | leave
	UserID   string    `json:"user_id"`
	OnlineAt time.Time `json:"online_at"`
}

// Group is the fixed global "who is online" roster over one NATS subject.
// Every member heartbeats an announce; each client folds announces into its
// own membership table, ages silent members out, and emits a full sync
// snapshot after every change. Unclean exits age out; no server keeps state.
type Group struct {
	conn    *nats.Conn
	subject string
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	members map[chat.UserID]time.Time
	onEvent func(policies.GroupEvent)
	sub     *nats.Subscription
	self    chat.PresenceEntry
	stop    chan struct{}
	joined  bool
}

func NewGroup(conn *nats.Conn, subject string, opts Options, logger *slog.Logger) *Group {
	opts.norm()
	return &Group{
		conn:    conn,
		subject: subject,
		opts:    opts,
		logger:  logger,
		members: make(map[chat.UserID]time.Time),
	}
}

// Join subscribes to the roster subject and starts heartbeating as self.
// Events (including the member's own announce echoing back) flow to onEvent.
func (g *Group) Join(ctx context.Context, self chat.PresenceEntry, onEvent func(policies.GroupEvent)) error {
	g.mu.Lock()
	if g.joined {
		g.mu.Unlock()
		return errors.New("natsgroup: already joined")
	}
	g.onEvent = onEvent
	g.self = self
	g.stop = make(chan struct{})
	g.joined = true
	g.mu.Unlock()

	sub, err := g.conn.Subscribe(g.subject, g.receive)
	if err != nil {
		g.mu.Lock()
		g.joined = false
		g.mu.Unlock()
		return err
	}
	g.mu.Lock()
	g.sub = sub
	stop := g.stop
	g.mu.Unlock()

	go g.run(stop)
	return nil
}

// Announce publishes self into the group so other members' snapshots include it.
func (g *Group) Announce(ctx context.Context, self chat.PresenceEntry) error {
	return g.publish(wireMessage{Kind: "announce", UserID: string(self.UserID), OnlineAt: self.OnlineAt})
}

// Leave publishes a clean departure and stops heartbeating. If the publish is
// lost, remote members age the entry out after the expiry window.
func (g *Group) Leave(ctx context.Context) error {
	g.mu.Lock()
	if !g.joined {
		g.mu.Unlock()
		return nil
	}
	g.joined = false
	close(g.stop)
	sub := g.sub
	g.sub = nil
	self := g.self
	g.mu.Unlock()

	err := g.publish(wireMessage{Kind: "leave", UserID: string(self.UserID), OnlineAt: self.OnlineAt})
	if sub != nil {
		if uerr := sub.Unsubscribe(); err == nil {
			err = uerr
		}
	}
	return err
}

func (g *Group) publish(msg wireMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return g.conn.Publish(g.subject, payload)
}

// run heartbeats self and sweeps out silent members.
func (g *Group) run(stop <-chan struct{}) {
	heartbeat := time.NewTicker(g.opts.Heartbeat)
	sweep := time.NewTicker(g.opts.Heartbeat)
	defer heartbeat.Stop()
	defer sweep.Stop()
	for {
		select {
		case <-stop:
			return
		case <-heartbeat.C:
			g.mu.Lock()
			self := g.self
			g.mu.Unlock()
			self.OnlineAt = time.Now().UTC()
			if err := g.Announce(context.Background(), self); err != nil && g.logger != nil {
				g.logger.Debug("presence heartbeat failed", "error", err)
			}
		case <-sweep.C:
			if g.expire(time.Now()) {
				g.emitSync()
			}
		}
	}
}

func (g *Group) receive(msg *nats.Msg) {
	var wire wireMessage
	if err := json.Unmarshal(msg.Data, &wire); err != nil || wire.UserID == "" {
		if g.logger != nil {
			g.logger.Debug("presence payload rejected", "error", err)
		}
		return
	}
	entry := chat.PresenceEntry{UserID: chat.UserID(wire.UserID), OnlineAt: wire.OnlineAt}
	switch wire.Kind {
	case "announce":
		if g.fold(entry) {
			g.emit(policies.GroupEvent{Kind: policies.GroupJoin, Member: &entry})
			g.emitSync()
		}
	case "leave":
		if g.drop(entry.UserID) {
			g.emit(policies.GroupEvent{Kind: policies.GroupLeave, Member: &entry})
			g.emitSync()
		}
	}
}

// fold records a heartbeat and reports whether the member is new.
func (g *Group) fold(entry chat.PresenceEntry) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, known := g.members[entry.UserID]
	g.members[entry.UserID] = time.Now()
	return !known
}

func (g *Group) drop(id chat.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[id]; !ok {
		return false
	}
	delete(g.members, id)
	return true
}

// expire removes members whose last heartbeat is older than the expiry
// window; this is the transport timeout presence relies on for unclean exits.
func (g *Group) expire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	changed := false
	for id, seen := range g.members {
		if now.Sub(seen) > g.opts.Expiry {
			delete(g.members, id)
			changed = true
		}
	}
	return changed
}

func (g *Group) emitSync() {
	g.mu.Lock()
	members := make([]chat.PresenceEntry, 0, len(g.members))
	for id, seen := range g.members {
		members = append(members, chat.PresenceEntry{UserID: id, OnlineAt: seen})
	}
	g.mu.Unlock()
	g.emit(policies.GroupEvent{Kind: policies.GroupSync, Members: members})
}

func (g *Group) emit(ev policies.GroupEvent) {
	g.mu.Lock()
	onEvent := g.onEvent
	g.mu.Unlock()
	if onEvent != nil {
		onEvent(ev)
	}
}

var _ policies.BroadcastGroup = (*Group)(nil)
