package sdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func msg(id, chatID, senderID int64, unread int64) *Message {
	u := unread
	return &Message{ID: id, ChatID: chatID, SenderID: senderID, UnreadCount: &u}
}

func TestAdvance_ConvergesToMaxInAnyOrder(t *testing.T) {
	orders := [][]int64{
		{1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1},
		{3, 5, 1, 4, 2},
		{5, 5, 5, 1, 3},
	}

	for _, order := range orders {
		tracker := NewTracker()
		for _, v := range order {
			tracker.Advance(7, 2, v)
		}
		require.EqualValues(t, 5, tracker.Watermark(7, 2))
	}
}

func TestAdvance_ReportsNewlyReadRange(t *testing.T) {
	tracker := NewTracker()

	prev, cur, advanced := tracker.Advance(7, 2, 10)
	require.True(t, advanced)
	require.EqualValues(t, 0, prev)
	require.EqualValues(t, 10, cur)

	// duplicate: no range
	_, _, advanced = tracker.Advance(7, 2, 10)
	require.False(t, advanced)

	// stale out-of-order: no range
	_, _, advanced = tracker.Advance(7, 2, 5)
	require.False(t, advanced)

	prev, cur, advanced = tracker.Advance(7, 2, 12)
	require.True(t, advanced)
	require.EqualValues(t, 10, prev)
	require.EqualValues(t, 12, cur)
}

func TestApplyRead_DecrementsEachMessageAtMostOnce(t *testing.T) {
	tracker := NewTracker()
	loaded := []*Message{
		msg(8, 5, 1, 1),
		msg(9, 5, 1, 1),
		msg(10, 5, 1, 1),
	}

	// the same read range delivered three times, partly out of order
	tracker.ApplyRead(5, 2, 10, loaded)
	tracker.ApplyRead(5, 2, 10, loaded)
	tracker.ApplyRead(5, 2, 8, loaded)

	for _, m := range loaded {
		require.EqualValues(t, 0, *m.UnreadCount, "message %d", m.ID)
	}
	require.EqualValues(t, 10, tracker.Watermark(5, 2))
}

func TestApplyRead_SkipsReadersOwnMessages(t *testing.T) {
	tracker := NewTracker()
	own := msg(9, 5, 2, 1)
	other := msg(10, 5, 1, 1)

	tracker.ApplyRead(5, 2, 10, []*Message{own, other})

	require.EqualValues(t, 1, *own.UnreadCount)
	require.EqualValues(t, 0, *other.UnreadCount)
}

func TestApplyRead_ClampsAtZero(t *testing.T) {
	tracker := NewTracker()
	m := msg(10, 5, 1, 0)

	tracker.ApplyRead(5, 2, 10, []*Message{m})

	require.EqualValues(t, 0, *m.UnreadCount)
}

func TestApplyRead_OnlyTouchesTheNewRange(t *testing.T) {
	tracker := NewTracker()
	loaded := []*Message{
		msg(5, 5, 1, 1),
		msg(10, 5, 1, 1),
		msg(15, 5, 1, 1),
	}

	tracker.ApplyRead(5, 2, 10, loaded)
	require.EqualValues(t, 0, *loaded[0].UnreadCount)
	require.EqualValues(t, 0, *loaded[1].UnreadCount)
	require.EqualValues(t, 1, *loaded[2].UnreadCount, "beyond the watermark, untouched")

	tracker.ApplyRead(5, 2, 15, loaded)
	require.EqualValues(t, 0, *loaded[2].UnreadCount)
}

// The sequence of scenario B then C then D: a fresh read, its duplicate,
// and a stale out-of-order copy.
func TestApplyRead_DuplicateAndStaleDeliveries(t *testing.T) {
	tracker := NewTracker()
	m := msg(10, 5, 1, 1)
	loaded := []*Message{m}

	tracker.ApplyRead(5, 2, 10, loaded)
	require.EqualValues(t, 0, *m.UnreadCount)
	require.EqualValues(t, 10, tracker.Watermark(5, 2))

	*m.UnreadCount = 1 // a second decrement would be visible again
	tracker.ApplyRead(5, 2, 10, loaded)
	require.EqualValues(t, 1, *m.UnreadCount)

	tracker.ApplyRead(5, 2, 5, loaded)
	require.EqualValues(t, 1, *m.UnreadCount)
	require.EqualValues(t, 10, tracker.Watermark(5, 2))
}

func TestTracker_PairsAreIndependent(t *testing.T) {
	tracker := NewTracker()

	tracker.Advance(1, 2, 10)
	tracker.Advance(1, 3, 4)
	tracker.Advance(2, 2, 7)

	require.EqualValues(t, 10, tracker.Watermark(1, 2))
	require.EqualValues(t, 4, tracker.Watermark(1, 3))
	require.EqualValues(t, 7, tracker.Watermark(2, 2))
	require.EqualValues(t, 0, tracker.Watermark(9, 9))
}
