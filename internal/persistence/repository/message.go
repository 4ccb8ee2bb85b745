package repository

import (
	"context"
	"time"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	maxHistoryDays   = 30
	maxAroundSpan    = 200
	defaultAroundGap = 50
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(gormDB *gorm.DB) *MessageRepository {
	return &MessageRepository{db: gormDB}
}

var _ domain.MessageRepository = (*MessageRepository)(nil)

func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage, attachments []domain.ChatAttachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		if len(attachments) > 0 {
			for i := range attachments {
				attachments[i].MessageID = message.ID
			}
			if err := tx.Create(&attachments).Error; err != nil {
				return err
			}
			message.Attachments = attachments
		}

		if err := tx.Model(&domain.Chat{}).
			Where("id = ?", message.ChatID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		// the sender has obviously read their own message
		return tx.Exec(`
			UPDATE chat_members
			SET last_read_message_id = GREATEST(COALESCE(last_read_message_id, 0), ?),
				last_read_at = NOW()
			WHERE chat_id = ? AND user_id = ?`,
			message.ID, message.ChatID, message.SenderID).Error
	})
}

// messageRow is the flat scan target for the enriched message queries.
type messageRow struct {
	ID          int64
	ChatID      int64
	SenderID    int64
	Content     *string
	CreatedAt   time.Time
	SenderName  string
	UnreadCount int64
}

func (row messageRow) toMessage() domain.ChatMessage {
	name := row.SenderName
	unread := row.UnreadCount
	return domain.ChatMessage{
		ID:          row.ID,
		ChatID:      row.ChatID,
		SenderID:    row.SenderID,
		Content:     row.Content,
		CreatedAt:   row.CreatedAt,
		SenderName:  &name,
		UnreadCount: &unread,
	}
}

func (r *MessageRepository) ListRecent(ctx context.Context, chatID int64, days int) ([]domain.ChatMessage, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var rows []messageRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at,
			COALESCE(NULLIF(TRIM(u.full_name), ''), u.username) AS sender_name,
			(
				SELECT COUNT(1)
				FROM chat_members cm
				WHERE cm.chat_id = m.chat_id
					AND cm.user_id <> m.sender_id
					AND (cm.last_read_message_id IS NULL OR cm.last_read_message_id < m.id)
			) AS unread_count
		FROM chat_messages m
		JOIN app_users u ON u.id = m.sender_id
		WHERE m.chat_id = ? AND m.created_at >= ?
		ORDER BY m.id ASC`, chatID, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return r.withAttachments(ctx, rows)
}

func (r *MessageRepository) Around(ctx context.Context, chatID, messageID int64, before, after int) ([]domain.ChatMessage, error) {
	if before <= 0 {
		before = defaultAroundGap
	}
	if after <= 0 {
		after = defaultAroundGap
	}
	before = min(before, maxAroundSpan)
	after = min(after, maxAroundSpan)

	var present int64
	err := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_id = ? AND id = ?", chatID, messageID).
		Count(&present).Error
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, domain.ErrMessageNotFound
	}

	const enriched = `
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at,
			COALESCE(NULLIF(TRIM(u.full_name), ''), u.username) AS sender_name,
			(
				SELECT COUNT(1)
				FROM chat_members cm
				WHERE cm.chat_id = m.chat_id
					AND cm.user_id <> m.sender_id
					AND (cm.last_read_message_id IS NULL OR cm.last_read_message_id < m.id)
			) AS unread_count
		FROM chat_messages m
		JOIN app_users u ON u.id = m.sender_id
		WHERE m.chat_id = ?`

	// the anchor rides along with the older half
	var older []messageRow
	err = r.db.WithContext(ctx).
		Raw(enriched+` AND m.id <= ? ORDER BY m.id DESC LIMIT ?`,
			chatID, messageID, before+1).
		Scan(&older).Error
	if err != nil {
		return nil, err
	}

	var newer []messageRow
	err = r.db.WithContext(ctx).
		Raw(enriched+` AND m.id > ? ORDER BY m.id ASC LIMIT ?`,
			chatID, messageID, after).
		Scan(&newer).Error
	if err != nil {
		return nil, err
	}

	rows := make([]messageRow, 0, len(older)+len(newer))
	for i := len(older) - 1; i >= 0; i-- {
		rows = append(rows, older[i])
	}
	rows = append(rows, newer...)

	return r.withAttachments(ctx, rows)
}

func (r *MessageRepository) Search(ctx context.Context, chatID int64, term string, limit, offset int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + term + "%"

	var rows []messageRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at,
			COALESCE(NULLIF(TRIM(u.full_name), ''), u.username) AS sender_name,
			(
				SELECT COUNT(1)
				FROM chat_members cm
				WHERE cm.chat_id = m.chat_id
					AND cm.user_id <> m.sender_id
					AND (cm.last_read_message_id IS NULL OR cm.last_read_message_id < m.id)
			) AS unread_count
		FROM chat_messages m
		JOIN app_users u ON u.id = m.sender_id
		WHERE m.chat_id = ?
			AND (
				m.content ILIKE ?
				OR EXISTS (
					SELECT 1 FROM chat_attachments a
					WHERE a.message_id = m.id AND a.file_name ILIKE ?
				)
			)
		ORDER BY m.id DESC
		LIMIT ? OFFSET ?`, chatID, pattern, pattern, limit, offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return r.withAttachments(ctx, rows)
}

// withAttachments hydrates attachment rows for a page of messages in one query.
func (r *MessageRepository) withAttachments(ctx context.Context, rows []messageRow) ([]domain.ChatMessage, error) {
	messages := lo.Map(rows, func(row messageRow, _ int) domain.ChatMessage {
		return row.toMessage()
	})
	if len(messages) == 0 {
		return messages, nil
	}

	ids := lo.Map(messages, func(m domain.ChatMessage, _ int) int64 { return m.ID })

	var attachments []domain.ChatAttachment
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", ids).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	byMessage := lo.GroupBy(attachments, func(a domain.ChatAttachment) int64 { return a.MessageID })
	for i := range messages {
		messages[i].Attachments = byMessage[messages[i].ID]
	}
	return messages, nil
}
