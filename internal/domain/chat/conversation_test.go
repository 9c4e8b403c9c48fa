package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationValidation(t *testing.T) {
	now := time.Now()

	_, err := NewConversation("", "adopter-1", "rehomer-1", "cat-1", now)
	assert.ErrorIs(t, err, ErrConversationIDRequired)

	_, err = NewConversation("conv-1", "", "rehomer-1", "cat-1", now)
	assert.ErrorIs(t, err, ErrParticipantsRequired)

	_, err = NewConversation("conv-1", "adopter-1", "adopter-1", "cat-1", now)
	assert.ErrorIs(t, err, ErrSameParticipant)

	conversation, err := NewConversation("conv-1", "adopter-1", "rehomer-1", "cat-1", now)
	require.NoError(t, err)
	assert.Equal(t, ConversationID("conv-1"), conversation.ID)
	assert.True(t, conversation.HasParticipant("adopter-1"))
	assert.True(t, conversation.HasParticipant("rehomer-1"))
	assert.False(t, conversation.HasParticipant("stranger"))
	assert.False(t, conversation.HasParticipant(""))
}

func TestOtherParticipant(t *testing.T) {
	conversation, err := NewConversation("conv-1", "adopter-1", "rehomer-1", "", time.Now())
	require.NoError(t, err)

	other, err := conversation.OtherParticipant("adopter-1")
	require.NoError(t, err)
	assert.Equal(t, UserID("rehomer-1"), other)

	other, err = conversation.OtherParticipant("rehomer-1")
	require.NoError(t, err)
	assert.Equal(t, UserID("adopter-1"), other)

	_, err = conversation.OtherParticipant("stranger")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestOtherPartyTypingWithinBound(t *testing.T) {
	now := time.Now()
	conversation := Conversation{
		ID:                  "conv-1",
		AdopterID:           "adopter-1",
		RehomerID:           "rehomer-1",
		RehomerIsTyping:     true,
		RehomerLastTypingAt: now.Add(-time.Second),
	}

	assert.True(t, conversation.OtherPartyTyping("adopter-1", now))
	// The adopter's own flag is irrelevant to the adopter's view.
	assert.False(t, conversation.OtherPartyTyping("rehomer-1", now))
}

func TestOtherPartyTypingStaleFlagRendersFalse(t *testing.T) {
	now := time.Now()
	conversation := Conversation{
		ID:                  "conv-1",
		AdopterID:           "adopter-1",
		RehomerID:           "rehomer-1",
		RehomerIsTyping:     true,
		RehomerLastTypingAt: now.Add(-5 * time.Second),
	}

	// The flag is still true but its timestamp is past the staleness bound:
	// the lost clearing update must not stick the indicator forever.
	assert.False(t, conversation.OtherPartyTyping("adopter-1", now))
}

func TestOtherPartyTypingEdgeCases(t *testing.T) {
	now := time.Now()
	conversation := Conversation{
		ID:        "conv-1",
		AdopterID: "adopter-1",
		RehomerID: "rehomer-1",
	}

	// Flag false, regardless of timestamp.
	conversation.RehomerLastTypingAt = now
	assert.False(t, conversation.OtherPartyTyping("adopter-1", now))

	// Flag true with zero timestamp is untrusted.
	conversation.RehomerIsTyping = true
	conversation.RehomerLastTypingAt = time.Time{}
	assert.False(t, conversation.OtherPartyTyping("adopter-1", now))

	// Non-participant sees nothing.
	conversation.RehomerLastTypingAt = now
	assert.False(t, conversation.OtherPartyTyping("stranger", now))
}

func TestFeedEventConcerns(t *testing.T) {
	event := FeedEvent{
		Kind:  EventInserted,
		Table: TableConversations,
		New:   &Row{ConversationID: "conv-1", AdopterID: "adopter-1", RehomerID: "rehomer-1"},
	}

	assert.True(t, event.Concerns("adopter-1"))
	assert.True(t, event.Concerns("rehomer-1"))
	assert.False(t, event.Concerns("stranger"))
	assert.False(t, event.Concerns(""))

	// Deletes carry only the old side.
	deletion := FeedEvent{
		Kind:  EventDeleted,
		Table: TableConversations,
		Old:   &Row{ConversationID: "conv-1", AdopterID: "adopter-1", RehomerID: "rehomer-1"},
	}
	assert.True(t, deletion.Concerns("rehomer-1"))
	assert.False(t, deletion.Concerns("stranger"))
}
