package sdk

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// previewAttachment is the conversation preview for attachment-only messages.
const previewAttachment = "File attachment"

// Projector folds streamed events into the locally held conversation list
// and message caches, so the UI stays current without refetching per event.
type Projector struct {
	mu            sync.Mutex
	currentUserID int64
	openChatID    int64

	conversations []Conversation
	messages      map[int64][]*Message
	seen          map[int64]map[int64]struct{}
}

func NewProjector(currentUserID int64) *Projector {
	return &Projector{
		currentUserID: currentUserID,
		messages:      make(map[int64][]*Message),
		seen:          make(map[int64]map[int64]struct{}),
	}
}

// OpenChat marks a chat as currently visible; its incoming messages no
// longer bump the unread badge. Zero closes the open chat.
func (p *Projector) OpenChat(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openChatID = chatID
}

func (p *Projector) OpenChatID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openChatID
}

// SetConversations replaces the list wholesale, as after a full refetch.
func (p *Projector) SetConversations(conversations []Conversation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conversations = append([]Conversation(nil), conversations...)
	p.resortLocked()
}

// SetMessages replaces a chat's cache wholesale.
func (p *Projector) SetMessages(chatID int64, messages []Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cache := make([]*Message, 0, len(messages))
	ids := make(map[int64]struct{}, len(messages))
	for i := range messages {
		m := messages[i]
		cache = append(cache, &m)
		ids[m.ID] = struct{}{}
	}
	p.messages[chatID] = cache
	p.seen[chatID] = ids
}

func (p *Projector) Conversations() []Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Conversation(nil), p.conversations...)
}

// Messages returns the live cache entries for a chat. Callers treat the
// returned messages as read-only outside the tracker.
func (p *Projector) Messages(chatID int64) []*Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Message(nil), p.messages[chatID]...)
}

// ApplyMessage folds one message event in. It reports false when the chat
// is unknown locally, in which case the owner refetches the full list
// instead of patching.
func (p *Projector) ApplyMessage(payload MessagePayload) (known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.conversationIndexLocked(payload.ChatID)
	if idx < 0 {
		return false
	}

	message := payload.Message
	if !p.appendLocked(payload.ChatID, &message) {
		// duplicate delivery, already folded in
		return true
	}

	preview := strings.TrimSpace(message.Text())
	if preview == "" && len(message.Attachments) > 0 {
		preview = previewAttachment
	}

	conv := &p.conversations[idx]
	conv.LastContent = &preview
	at := message.CreatedAt
	conv.LastAt = &at
	conv.UpdatedAt = at
	conv.LastSenderName = message.SenderName

	if payload.ChatID != p.openChatID && message.SenderID != p.currentUserID {
		conv.UnreadCount++
	}

	p.resortLocked()
	return true
}

// ApplyConversation synthesizes a local system message for a membership
// change. The caller still refetches the member list, member counts feed
// the unread denominators.
func (p *Projector) ApplyConversation(payload ConversationPayload) (known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conversationIndexLocked(payload.ChatID) < 0 {
		return false
	}

	text := systemText(payload)
	if text == "" {
		return true
	}

	// client-generated id, far above any server message id sequence
	system := &Message{
		ID:        time.Now().UnixMilli(),
		ChatID:    payload.ChatID,
		CreatedAt: time.Now(),
		Content:   &text,
	}
	p.appendLocked(payload.ChatID, system)
	return true
}

func systemText(payload ConversationPayload) string {
	switch payload.Action {
	case ActionLeft:
		return fmt.Sprintf("%s left the chat", payload.UserName)
	case ActionInvited:
		return fmt.Sprintf("%s invited %s", payload.InviterName, strings.Join(payload.InvitedUserNames, ", "))
	default:
		return ""
	}
}

func (p *Projector) appendLocked(chatID int64, message *Message) bool {
	ids, ok := p.seen[chatID]
	if !ok {
		ids = make(map[int64]struct{})
		p.seen[chatID] = ids
	}
	if _, dup := ids[message.ID]; dup {
		return false
	}
	ids[message.ID] = struct{}{}
	p.messages[chatID] = append(p.messages[chatID], message)
	return true
}

// ResetUnread clears a conversation's badge, as after the current user
// marks the chat read.
func (p *Projector) ResetUnread(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx := p.conversationIndexLocked(chatID); idx >= 0 {
		p.conversations[idx].UnreadCount = 0
	}
}

// SetMemberCount updates the member denominator after a membership refetch.
func (p *Projector) SetMemberCount(chatID int64, count int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx := p.conversationIndexLocked(chatID); idx >= 0 {
		p.conversations[idx].MemberCount = count
	}
}

func (p *Projector) conversationIndexLocked(chatID int64) int {
	for i := range p.conversations {
		if p.conversations[i].ID == chatID {
			return i
		}
	}
	return -1
}

func (p *Projector) resortLocked() {
	sort.SliceStable(p.conversations, func(i, j int) bool {
		return p.conversations[i].UpdatedAt.After(p.conversations[j].UpdatedAt)
	})
}
