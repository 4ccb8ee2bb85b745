package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("not a member of this chat")
	ErrSelfChat        = errors.New("cannot start a chat with yourself")
	ErrTooFewMembers   = errors.New("a group chat needs at least two members")
)

type Chat struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	IsGroup   bool      `json:"is_group"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

// ChatMember carries the read watermark: the highest message id this user is
// known to have read in this chat. The watermark only ever moves forward.
type ChatMember struct {
	ChatID            int64      `gorm:"primaryKey" json:"chat_id"`
	UserID            int64      `gorm:"primaryKey" json:"user_id"`
	LastReadMessageID *int64     `json:"last_read_message_id"`
	LastReadAt        *time.Time `json:"last_read_at"`
}

func (ChatMember) TableName() string { return "chat_members" }

// ChatMessage ids are monotonically increasing within a chat and double as
// the sequence numbers the read watermarks point at.
type ChatMessage struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ChatID    int64     `gorm:"index:idx_chat_messages_chat_created" json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Content   *string   `json:"content"`
	CreatedAt time.Time `gorm:"index:idx_chat_messages_chat_created" json:"created_at"`

	// Derived, never stored.
	SenderName  *string          `gorm:"-" json:"sender_name,omitempty"`
	Attachments []ChatAttachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	// Number of other members whose watermark is still below this message.
	// Nil when the query did not compute it.
	UnreadCount *int64 `gorm:"-" json:"unread_count,omitempty"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

type ChatAttachment struct {
	ID        int64   `gorm:"primaryKey" json:"id"`
	MessageID int64   `gorm:"index" json:"message_id"`
	FileName  string  `json:"file_name"`
	FilePath  string  `json:"file_path"`
	MimeType  *string `json:"mime_type"`
	Size      int64   `json:"size"`
}

func (ChatAttachment) TableName() string { return "chat_attachments" }

// ConversationSummary is the client-visible list entry for one chat.
type ConversationSummary struct {
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

// ChatWatermark pairs a chat with the message id a read marker advanced to.
type ChatWatermark struct {
	ChatID        int64
	LastMessageID int64
}

// MemberInfo is the member-listing projection of a user.
type MemberInfo struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	FullName *string `json:"full_name"`
	IsActive bool    `json:"is_active"`
}

type ChatRepository interface {
	// StartDirect returns an existing 1:1 chat between the two users or
	// creates one. Never produces duplicate direct chats for the same pair.
	StartDirect(ctx context.Context, me, other int64) (int64, error)
	// StartGroup creates a group chat with the given members (me always
	// included). With exactly one other member it collapses to StartDirect.
	StartGroup(ctx context.Context, me int64, title string, memberIDs []int64) (int64, error)
	// Summaries lists the caller's conversations newest-activity first.
	// Unread counts only consider messages within the recency window.
	Summaries(ctx context.Context, userID int64, window time.Duration) ([]ConversationSummary, error)
	Members(ctx context.Context, chatID, me int64) ([]MemberInfo, error)
	MemberIDs(ctx context.Context, chatID int64) ([]int64, error)
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
	// Invite adds the users that are not members yet and flips the chat to a
	// group. Returns the ids actually added.
	Invite(ctx context.Context, chatID int64, userIDs []int64) ([]int64, error)
	Leave(ctx context.Context, chatID, userID int64) error
	// MarkRead advances the caller's watermark to lastMessageID. A stale id
	// never moves the watermark backward.
	MarkRead(ctx context.Context, chatID, userID, lastMessageID int64) error
	// MarkAllRead advances the caller's watermark to the newest message in
	// every chat they belong to and reports the affected chats.
	MarkAllRead(ctx context.Context, userID int64) ([]ChatWatermark, error)
	DisplayName(ctx context.Context, userID int64) (string, error)
}

type MessageRepository interface {
	// Create inserts the message (and its attachments) in one transaction,
	// bumps the chat's updated_at and advances the sender's own watermark.
	Create(ctx context.Context, message *ChatMessage, attachments []ChatAttachment) error
	// ListRecent returns the chat's messages of the last N days, oldest
	// first, attachments populated.
	ListRecent(ctx context.Context, chatID int64, days int) ([]ChatMessage, error)
	// Around returns up to before+after+1 messages centered on messageID,
	// with per-message unread counts.
	Around(ctx context.Context, chatID, messageID int64, before, after int) ([]ChatMessage, error)
	// Search matches message content or attachment file names, newest first.
	Search(ctx context.Context, chatID int64, term string, limit, offset int) ([]ChatMessage, error)
}
