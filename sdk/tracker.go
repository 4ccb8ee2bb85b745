package sdk

import "sync"

type watermarkKey struct {
	chatID int64
	userID int64
}

// Tracker remembers the highest read watermark seen per (chat, user) pair
// for the lifetime of the client session. It converges to the maximum
// last_message_id regardless of duplication or delivery order, which is what
// keeps unread counters from being decremented twice for the same range.
type Tracker struct {
	mu         sync.Mutex
	watermarks map[watermarkKey]int64
}

func NewTracker() *Tracker {
	return &Tracker{watermarks: make(map[watermarkKey]int64)}
}

// Advance applies one read event and reports the half-open range
// (prev, cur] that became newly read. advanced is false for duplicates and
// stale out-of-order events, in which case no decrement must happen.
func (t *Tracker) Advance(chatID, userID, lastMessageID int64) (prev, cur int64, advanced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := watermarkKey{chatID: chatID, userID: userID}
	prev = t.watermarks[key]
	cur = max(prev, lastMessageID)
	if cur > prev {
		t.watermarks[key] = cur
		return prev, cur, true
	}
	return prev, prev, false
}

// Watermark returns the last processed watermark, zero when none was seen.
func (t *Tracker) Watermark(chatID, userID int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermarks[watermarkKey{chatID: chatID, userID: userID}]
}

// ApplyRead advances the watermark and decrements the unread counter of
// every loaded message the range (prev, cur] covers, skipping the reader's
// own messages and clamping at zero.
func (t *Tracker) ApplyRead(chatID, userID, lastMessageID int64, loaded []*Message) {
	prev, cur, advanced := t.Advance(chatID, userID, lastMessageID)
	if !advanced {
		return
	}

	for _, m := range loaded {
		if m.ChatID != chatID || m.SenderID == userID {
			continue
		}
		if m.ID <= prev || m.ID > cur {
			continue
		}
		if m.UnreadCount == nil || *m.UnreadCount <= 0 {
			continue
		}
		*m.UnreadCount--
	}
}
