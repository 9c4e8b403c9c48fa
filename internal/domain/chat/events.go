package chat

import "time"

// EventKind classifies a change-feed notification.
type EventKind string

const (
	EventInserted EventKind = "inserted"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
)

// Feed table names.
const (
	TableConversations = "conversations"
	TableMessages      = "messages"
)

// Row is the raw change-feed snapshot of a conversation or message record.
// The feed carries bare rows; denormalized display data comes only from the
// fetch path.
type Row struct {
	ConversationID ConversationID `json:"conversation_id"`
	MessageID      MessageID      `json:"message_id,omitempty"`
	AdopterID      UserID         `json:"adopter_id,omitempty"`
	RehomerID      UserID         `json:"rehomer_id,omitempty"`
	AnimalID       AnimalID       `json:"animal_id,omitempty"`
	SenderID       UserID         `json:"sender_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
	LastMessageAt  time.Time      `json:"last_message_at,omitempty"`
}

// FeedEvent is one insert/update/delete notification. New is set for insert
// and update; Old is set for update and delete.
type FeedEvent struct {
	Kind  EventKind `json:"kind"`
	Table string    `json:"table"`
	New   *Row      `json:"new,omitempty"`
	Old   *Row      `json:"old,omitempty"`
}

// Concerns reports whether either side of the event references user id,
// covering insert, update and delete. This is the client-side relevance
// filter used when the transport cannot apply compound server-side filters.
func (e FeedEvent) Concerns(id UserID) bool {
	if id == "" {
		return false
	}
	for _, row := range []*Row{e.New, e.Old} {
		if row == nil {
			continue
		}
		if row.AdopterID == id || row.RehomerID == id {
			return true
		}
	}
	return false
}
