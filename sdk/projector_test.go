package sdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func conversation(id int64, updatedAt time.Time) Conversation {
	return Conversation{ID: id, UpdatedAt: updatedAt}
}

func strptr(s string) *string { return &s }

func TestApplyMessage_UpdatesPreviewAndBadge(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p := NewProjector(2)
	p.SetConversations([]Conversation{conversation(5, base)})

	sent := base.Add(time.Minute)
	known := p.ApplyMessage(MessagePayload{
		ChatID: 5,
		Message: Message{
			ID:         10,
			ChatID:     5,
			SenderID:   1,
			Content:    strptr("hello"),
			CreatedAt:  sent,
			SenderName: strptr("Alice"),
		},
	})
	require.True(t, known)

	chats := p.Conversations()
	require.Len(t, chats, 1)
	require.Equal(t, "hello", *chats[0].LastContent)
	require.Equal(t, sent, chats[0].UpdatedAt)
	require.Equal(t, "Alice", *chats[0].LastSenderName)
	require.EqualValues(t, 1, chats[0].UnreadCount)
	require.Len(t, p.Messages(5), 1)
}

func TestApplyMessage_IdempotentAppend(t *testing.T) {
	p := NewProjector(2)
	p.SetConversations([]Conversation{conversation(5, time.Now())})

	payload := MessagePayload{ChatID: 5, Message: Message{ID: 10, ChatID: 5, SenderID: 1, Content: strptr("hi")}}
	p.ApplyMessage(payload)
	p.ApplyMessage(payload)

	require.Len(t, p.Messages(5), 1)
	require.EqualValues(t, 1, p.Conversations()[0].UnreadCount, "duplicate delivery is a full no-op")
}

func TestApplyMessage_NoBadgeForOwnOrOpenChat(t *testing.T) {
	p := NewProjector(2)
	p.SetConversations([]Conversation{conversation(5, time.Now()), conversation(6, time.Now())})

	// own message
	p.ApplyMessage(MessagePayload{ChatID: 5, Message: Message{ID: 1, ChatID: 5, SenderID: 2, Content: strptr("mine")}})
	// message into the open chat
	p.OpenChat(6)
	p.ApplyMessage(MessagePayload{ChatID: 6, Message: Message{ID: 2, ChatID: 6, SenderID: 1, Content: strptr("seen live")}})

	for _, c := range p.Conversations() {
		require.Zero(t, c.UnreadCount, "chat %d", c.ID)
	}
}

func TestApplyMessage_AttachmentOnlyPreview(t *testing.T) {
	p := NewProjector(2)
	p.SetConversations([]Conversation{conversation(5, time.Now())})

	p.ApplyMessage(MessagePayload{ChatID: 5, Message: Message{
		ID:          1,
		ChatID:      5,
		SenderID:    1,
		Attachments: []Attachment{{ID: 1, FileName: "report.pdf"}},
	}})

	require.Equal(t, previewAttachment, *p.Conversations()[0].LastContent)
}

func TestApplyMessage_UnknownChatRequestsRefetch(t *testing.T) {
	p := NewProjector(2)
	p.SetConversations([]Conversation{conversation(5, time.Now())})

	known := p.ApplyMessage(MessagePayload{ChatID: 99, Message: Message{ID: 1, ChatID: 99, SenderID: 1}})
	require.False(t, known)
	require.Empty(t, p.Messages(99))
}

func TestApplyMessage_ResortsByActivity(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p := NewProjector(2)
	p.SetConversations([]Conversation{
		conversation(1, base.Add(3*time.Hour)),
		conversation(2, base.Add(2*time.Hour)),
		conversation(3, base.Add(time.Hour)),
	})

	p.ApplyMessage(MessagePayload{ChatID: 3, Message: Message{
		ID: 1, ChatID: 3, SenderID: 1, Content: strptr("bump"), CreatedAt: base.Add(4 * time.Hour),
	}})

	chats := p.Conversations()
	require.EqualValues(t, 3, chats[0].ID)
	require.EqualValues(t, 1, chats[1].ID)
	require.EqualValues(t, 2, chats[2].ID)
}

func TestApplyConversation_SynthesizesSystemMessages(t *testing.T) {
	p := NewProjector(2)
	p.SetConversations([]Conversation{conversation(5, time.Now())})

	known := p.ApplyConversation(ConversationPayload{
		ChatID: 5, Action: ActionLeft, UserID: 3, UserName: "Bob",
	})
	require.True(t, known)

	known = p.ApplyConversation(ConversationPayload{
		ChatID:           5,
		Action:           ActionInvited,
		InviterID:        2,
		InviterName:      "Alice",
		InvitedUserIDs:   []int64{7, 8},
		InvitedUserNames: []string{"Carol", "Dave"},
	})
	require.True(t, known)

	messages := p.Messages(5)
	require.Len(t, messages, 2)
	require.Equal(t, "Bob left the chat", messages[0].Text())
	require.Equal(t, "Alice invited Carol, Dave", messages[1].Text())
	// client-generated ids sit far above server sequences
	require.Greater(t, messages[0].ID, int64(1e12))
}

func TestApplyConversation_UnknownChatRequestsRefetch(t *testing.T) {
	p := NewProjector(2)

	known := p.ApplyConversation(ConversationPayload{ChatID: 99, Action: ActionLeft, UserName: "Bob"})
	require.False(t, known)
}

// Scenario: user 1 sends message 10 into chat 5; user 2's projector bumps
// the badge and preview, then user 2's read event clears it through the
// tracker and badge reset.
func TestProjectorAndTracker_SendThenReadRoundTrip(t *testing.T) {
	p := NewProjector(1)
	tracker := NewTracker()
	p.SetConversations([]Conversation{conversation(5, time.Now().Add(-time.Hour))})

	one := int64(1)
	p.ApplyMessage(MessagePayload{ChatID: 5, Message: Message{
		ID: 10, ChatID: 5, SenderID: 1, Content: strptr("hey"), UnreadCount: &one,
	}})

	tracker.ApplyRead(5, 2, 10, p.Messages(5))

	messages := p.Messages(5)
	require.Len(t, messages, 1)
	require.EqualValues(t, 0, *messages[0].UnreadCount)
}
