package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventConnected    EventType = "connected"
	EventPing         EventType = "ping"
	EventMessage      EventType = "message"
	EventRead         EventType = "read"
	EventConversation EventType = "conversation"
)

type ConversationAction string

const (
	ConversationLeft    ConversationAction = "left"
	ConversationInvited ConversationAction = "invited"
)

// Event is the transient record carried between publish and delivery. It is
// never persisted; clients re-synchronize full state on reconnect.
type Event struct {
	Type EventType `json:"type"`
	// T is only set on ping events (unix milliseconds).
	T    int64     `json:"t,omitempty"`
	Data EventData `json:"data,omitempty"`
}

// EventData is a closed union: message, read and conversation payloads.
type EventData interface {
	isEventData()
}

type MessageData struct {
	ChatID  int64       `json:"chat_id"`
	Message ChatMessage `json:"message"`
}

type ReadData struct {
	ChatID        int64 `json:"chat_id"`
	UserID        int64 `json:"user_id"`
	LastMessageID int64 `json:"last_message_id"`
}

type ConversationData struct {
	ChatID int64              `json:"chat_id"`
	Action ConversationAction `json:"action"`

	// left
	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`

	// invited
	InviterID        int64    `json:"inviter_id,omitempty"`
	InviterName      string   `json:"inviter_name,omitempty"`
	InvitedUserIDs   []int64  `json:"invited_user_ids,omitempty"`
	InvitedUserNames []string `json:"invited_user_names,omitempty"`
}

func (MessageData) isEventData()      {}
func (ReadData) isEventData()         {}
func (ConversationData) isEventData() {}

func NewConnectedEvent() Event {
	return Event{Type: EventConnected}
}

func NewPingEvent(now time.Time) Event {
	return Event{Type: EventPing, T: now.UnixMilli()}
}

func NewMessageEvent(chatID int64, message ChatMessage) Event {
	return Event{Type: EventMessage, Data: MessageData{ChatID: chatID, Message: message}}
}

func NewReadEvent(chatID, userID, lastMessageID int64) Event {
	return Event{Type: EventRead, Data: ReadData{ChatID: chatID, UserID: userID, LastMessageID: lastMessageID}}
}

func NewMemberLeftEvent(chatID, userID int64, userName string) Event {
	return Event{Type: EventConversation, Data: ConversationData{
		ChatID:   chatID,
		Action:   ConversationLeft,
		UserID:   userID,
		UserName: userName,
	}}
}

func NewMembersInvitedEvent(chatID, inviterID int64, inviterName string, invitedIDs []int64, invitedNames []string) Event {
	return Event{Type: EventConversation, Data: ConversationData{
		ChatID:           chatID,
		Action:           ConversationInvited,
		InviterID:        inviterID,
		InviterName:      inviterName,
		InvitedUserIDs:   invitedIDs,
		InvitedUserNames: invitedNames,
	}}
}

// UnmarshalJSON decodes the data payload into the variant matching the type
// tag, so consumers can switch exhaustively on concrete types.
func (e *Event) UnmarshalJSON(raw []byte) error {
	var head struct {
		Type EventType       `json:"type"`
		T    int64           `json:"t"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}

	e.Type = head.Type
	e.T = head.T
	e.Data = nil

	if len(head.Data) == 0 || string(head.Data) == "null" {
		switch head.Type {
		case EventConnected, EventPing:
			return nil
		case EventMessage, EventRead, EventConversation:
			return fmt.Errorf("event %q is missing its data payload", head.Type)
		default:
			return fmt.Errorf("unknown event type %q", head.Type)
		}
	}

	switch head.Type {
	case EventConnected, EventPing:
		// payloads on control events are ignored
		return nil
	case EventMessage:
		var d MessageData
		if err := json.Unmarshal(head.Data, &d); err != nil {
			return err
		}
		e.Data = d
	case EventRead:
		var d ReadData
		if err := json.Unmarshal(head.Data, &d); err != nil {
			return err
		}
		e.Data = d
	case EventConversation:
		var d ConversationData
		if err := json.Unmarshal(head.Data, &d); err != nil {
			return err
		}
		e.Data = d
	default:
		return fmt.Errorf("unknown event type %q", head.Type)
	}

	return nil
}
