package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"catmatch/internal/domain/chat"
)

// Notice is what the hub pushes to open UI tabs: either a cache key prefix
// went stale (the tab re-reads through the facade) or the online roster
// changed. Data never travels over this socket, only the hint to refetch.
type Notice struct {
	Type      string        `json:"type"` // invalidated | presence
	KeyPrefix string        `json:"key_prefix,omitempty"`
	Online    []chat.UserID `json:"online,omitempty"`
}

// Hub fans notices out to every connected tab.
type Hub struct {
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	notices    chan Notice

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notices:    make(chan Notice, 64),
		clients:    make(map[*Client]bool),
	}
}

// Run processes registrations and notices until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case notice := <-h.notices:
			payload, err := json.Marshal(notice)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow tab; it recovers on its next explicit read.
					if h.logger != nil {
						h.logger.Debug("ws send buffer full, notice dropped")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyInvalidated tells tabs a key prefix went stale.
func (h *Hub) NotifyInvalidated(keyPrefix string) {
	h.push(Notice{Type: "invalidated", KeyPrefix: keyPrefix})
}

// NotifyPresence pushes the current online roster.
func (h *Hub) NotifyPresence(online []chat.UserID) {
	h.push(Notice{Type: "presence", Online: online})
}

func (h *Hub) push(notice Notice) {
	select {
	case h.notices <- notice:
	default:
		// Notices are hints, never data; dropping under pressure is safe.
		if h.logger != nil {
			h.logger.Debug("ws hub notice queue full")
		}
	}
}
