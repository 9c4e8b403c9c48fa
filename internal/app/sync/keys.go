package sync

import (
	"strings"

	"catmatch/internal/domain/chat"
)

// Cache key scheme. The three families are deliberately non-overlapping so an
// invalidation of one never spills into another: delete-only conversation
// events must not touch the unread count.
const (
	ConversationsPrefix = "conversations/"
	MessagesPrefix      = "messages/"
	UnreadPrefix        = "unread/"
)

// ConversationListKey addresses a user's inbox page set.
func ConversationListKey(userID chat.UserID) string {
	return ConversationsPrefix + string(userID)
}

// MessagesKey addresses one conversation's message page set.
func MessagesKey(conversationID chat.ConversationID) string {
	return MessagesPrefix + string(conversationID)
}

// UnreadCountKey addresses a user's global unread counter.
func UnreadCountKey(userID chat.UserID) string {
	return UnreadPrefix + string(userID)
}

// SplitKey returns the family prefix and id portion of a cache key; the
// loader uses it to route a stale key back to the right fetch.
func SplitKey(key string) (prefix, id string) {
	for _, p := range []string{ConversationsPrefix, MessagesPrefix, UnreadPrefix} {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return p, key[len(p):]
		}
	}
	return "", key
}
