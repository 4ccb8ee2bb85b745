package sdk

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventConnected    = "connected"
	EventPing         = "ping"
	EventMessage      = "message"
	EventRead         = "read"
	EventConversation = "conversation"
)

const (
	ActionLeft    = "left"
	ActionInvited = "invited"
)

type Attachment struct {
	ID        int64   `json:"id"`
	MessageID int64   `json:"message_id"`
	FileName  string  `json:"file_name"`
	FilePath  string  `json:"file_path"`
	MimeType  *string `json:"mime_type"`
	Size      int64   `json:"size"`
}

type Message struct {
	ID          int64        `json:"id"`
	ChatID      int64        `json:"chat_id"`
	SenderID    int64        `json:"sender_id"`
	Content     *string      `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	SenderName  *string      `json:"sender_name,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	UnreadCount *int64       `json:"unread_count,omitempty"`
}

// Text returns the message content, empty for attachment-only messages.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

type Conversation struct {
	ID             int64      `json:"id"`
	IsGroup        bool       `json:"is_group"`
	Title          *string    `json:"title"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastContent    *string    `json:"last_content"`
	LastAt         *time.Time `json:"last_at"`
	LastSenderName *string    `json:"last_sender_name"`
	UnreadCount    int64      `json:"unread_count"`
	OtherUserID    *int64     `json:"other_user_id,omitempty"`
	OtherUserName  *string    `json:"other_user_name,omitempty"`
	MemberCount    int64      `json:"member_count"`
}

type Member struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	FullName *string `json:"full_name"`
	IsActive bool    `json:"is_active"`
}

type MessagePayload struct {
	ChatID  int64   `json:"chat_id"`
	Message Message `json:"message"`
}

type ReadPayload struct {
	ChatID        int64 `json:"chat_id"`
	UserID        int64 `json:"user_id"`
	LastMessageID int64 `json:"last_message_id"`
}

type ConversationPayload struct {
	ChatID           int64    `json:"chat_id"`
	Action           string   `json:"action"`
	UserID           int64    `json:"user_id,omitempty"`
	UserName         string   `json:"user_name,omitempty"`
	InviterID        int64    `json:"inviter_id,omitempty"`
	InviterName      string   `json:"inviter_name,omitempty"`
	InvitedUserIDs   []int64  `json:"invited_user_ids,omitempty"`
	InvitedUserNames []string `json:"invited_user_names,omitempty"`
}

// Event is the decoded stream record. Exactly one payload field is non-nil,
// matching Type.
type Event struct {
	Type string `json:"type"`
	// T is the server clock on ping events, unix milliseconds.
	T int64 `json:"t,omitempty"`

	Message      *MessagePayload      `json:"-"`
	Read         *ReadPayload         `json:"-"`
	Conversation *ConversationPayload `json:"-"`
}

func (e *Event) UnmarshalJSON(raw []byte) error {
	var head struct {
		Type string          `json:"type"`
		T    int64           `json:"t"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}

	*e = Event{Type: head.Type, T: head.T}

	switch head.Type {
	case EventConnected, EventPing:
		return nil
	case EventMessage:
		e.Message = &MessagePayload{}
		return json.Unmarshal(head.Data, e.Message)
	case EventRead:
		e.Read = &ReadPayload{}
		return json.Unmarshal(head.Data, e.Read)
	case EventConversation:
		e.Conversation = &ConversationPayload{}
		return json.Unmarshal(head.Data, e.Conversation)
	default:
		return fmt.Errorf("unknown event type %q", head.Type)
	}
}
