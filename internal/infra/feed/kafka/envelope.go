package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"catmatch/internal/domain/chat"
)

// The backend wraps every row mutation in a CloudEvents-style envelope, e.g.
// type "chat.messages.inserted.v1" with the old/new rows under data.
type envelope struct {
	SpecVersion string         `json:"specversion"`
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Time        time.Time      `json:"time"`
	Data        chat.FeedEvent `json:"data"`
}

// DecodeEvent parses one feed payload into a typed event. The event kind and
// table come from the envelope type; a payload naming neither kind nor any
// row is rejected.
func DecodeEvent(value []byte) (chat.FeedEvent, error) {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return chat.FeedEvent{}, fmt.Errorf("kafka feed: decode envelope: %w", err)
	}
	event := env.Data
	if event.Kind == "" {
		event.Kind = kindFromType(env.Type)
	}
	if event.Table == "" {
		event.Table = tableFromType(env.Type)
	}
	switch event.Kind {
	case chat.EventInserted, chat.EventUpdated, chat.EventDeleted:
	default:
		return chat.FeedEvent{}, fmt.Errorf("kafka feed: unknown event kind in type %q", env.Type)
	}
	if event.New == nil && event.Old == nil {
		return chat.FeedEvent{}, fmt.Errorf("kafka feed: event %q carries no rows", env.Type)
	}
	return event, nil
}

// EncodeEvent wraps an event in the wire envelope; used by the local feed
// probe to inject synthetic events.
func EncodeEvent(id string, event chat.FeedEvent, at time.Time) ([]byte, error) {
	env := envelope{
		SpecVersion: "1.0",
		ID:          id,
		Type:        fmt.Sprintf("chat.%s.%s.v1", event.Table, event.Kind),
		Time:        at,
		Data:        event,
	}
	return json.Marshal(env)
}

func kindFromType(eventType string) chat.EventKind {
	parts := strings.Split(eventType, ".")
	for _, part := range parts {
		switch chat.EventKind(part) {
		case chat.EventInserted, chat.EventUpdated, chat.EventDeleted:
			return chat.EventKind(part)
		}
	}
	return ""
}

func tableFromType(eventType string) string {
	parts := strings.Split(eventType, ".")
	if len(parts) >= 2 && parts[0] == "chat" {
		return parts[1]
	}
	return ""
}
