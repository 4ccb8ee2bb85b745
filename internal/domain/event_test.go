package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventUnmarshal_DecodesIntoConcreteVariant(t *testing.T) {
	content := "hello"
	original := NewMessageEvent(5, ChatMessage{ID: 10, ChatID: 5, SenderID: 1, Content: &content})

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))

	// consumers switch exhaustively on the concrete payload type
	switch data := decoded.Data.(type) {
	case MessageData:
		require.EqualValues(t, 5, data.ChatID)
		require.EqualValues(t, 10, data.Message.ID)
		require.Equal(t, "hello", *data.Message.Content)
	default:
		t.Fatalf("wrong payload variant %T", decoded.Data)
	}
}

func TestEventUnmarshal_ControlEventsCarryNoPayload(t *testing.T) {
	var connected Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"connected"}`), &connected))
	require.Equal(t, EventConnected, connected.Type)
	require.Nil(t, connected.Data)

	var ping Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ping","t":1756600000000}`), &ping))
	require.Equal(t, EventPing, ping.Type)
	require.EqualValues(t, 1756600000000, ping.T)
}

func TestEventUnmarshal_RejectsUnknownAndTruncated(t *testing.T) {
	var ev Event
	require.Error(t, json.Unmarshal([]byte(`{"type":"alien"}`), &ev))
	require.Error(t, json.Unmarshal([]byte(`{"type":"read"}`), &ev), "payload events need their data")
}

func TestEventUnmarshal_ConversationActions(t *testing.T) {
	raw, err := json.Marshal(NewMembersInvitedEvent(5, 2, "Alice", []int64{7}, []string{"Carol"}))
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))

	data, ok := decoded.Data.(ConversationData)
	require.True(t, ok)
	require.Equal(t, ConversationInvited, data.Action)
	require.Equal(t, "Alice", data.InviterName)
	require.Equal(t, []string{"Carol"}, data.InvitedUserNames)
}
