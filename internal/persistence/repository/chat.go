package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// attachmentPlaceholder is shown as the conversation preview when the last
// message carries files but no text.
const attachmentPlaceholder = "File attachment"

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(gormDB *gorm.DB) *ChatRepository {
	return &ChatRepository{db: gormDB}
}

var _ domain.ChatRepository = (*ChatRepository)(nil)

func (r *ChatRepository) StartDirect(ctx context.Context, me, other int64) (int64, error) {
	if me == other {
		return 0, domain.ErrSelfChat
	}

	var existing int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id
		FROM chats c
		JOIN chat_members a ON a.chat_id = c.id AND a.user_id = ?
		JOIN chat_members b ON b.chat_id = c.id AND b.user_id = ?
		WHERE c.is_group = false
		ORDER BY c.id
		LIMIT 1`, me, other).Scan(&existing).Error
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		return existing, nil
	}

	chat := domain.Chat{IsGroup: false}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		members := []domain.ChatMember{
			{ChatID: chat.ID, UserID: me},
			{ChatID: chat.ID, UserID: other},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return 0, err
	}
	return chat.ID, nil
}

func (r *ChatRepository) StartGroup(ctx context.Context, me int64, title string, memberIDs []int64) (int64, error) {
	ids := lo.Uniq(lo.Filter(memberIDs, func(id int64, _ int) bool { return id > 0 && id != me }))

	// two people is a direct chat, deduplicated like any other
	if len(ids) == 1 {
		return r.StartDirect(ctx, me, ids[0])
	}
	if len(ids) == 0 {
		return 0, domain.ErrTooFewMembers
	}

	chat := domain.Chat{IsGroup: true}
	if title != "" {
		chat.Title = &title
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		members := make([]domain.ChatMember, 0, len(ids)+1)
		members = append(members, domain.ChatMember{ChatID: chat.ID, UserID: me})
		for _, id := range ids {
			members = append(members, domain.ChatMember{ChatID: chat.ID, UserID: id})
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return 0, err
	}
	return chat.ID, nil
}

func (r *ChatRepository) Summaries(ctx context.Context, userID int64, window time.Duration) ([]domain.ConversationSummary, error) {
	cutoff := time.Now().Add(-window)

	var summaries []domain.ConversationSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id, c.is_group, c.title, c.updated_at,
			(
				SELECT COALESCE(
					NULLIF(TRIM(m.content), ''),
					CASE WHEN EXISTS (SELECT 1 FROM chat_attachments a WHERE a.message_id = m.id)
						THEN ? ELSE '' END
				)
				FROM chat_messages m
				WHERE m.chat_id = c.id
				ORDER BY m.created_at DESC, m.id DESC
				LIMIT 1
			) AS last_content,
			(
				SELECT m.created_at
				FROM chat_messages m
				WHERE m.chat_id = c.id
				ORDER BY m.created_at DESC, m.id DESC
				LIMIT 1
			) AS last_at,
			(
				SELECT COALESCE(NULLIF(TRIM(u.full_name), ''), u.username)
				FROM chat_messages m
				JOIN app_users u ON u.id = m.sender_id
				WHERE m.chat_id = c.id
				ORDER BY m.created_at DESC, m.id DESC
				LIMIT 1
			) AS last_sender_name,
			(
				SELECT COUNT(1)
				FROM chat_messages m
				WHERE m.chat_id = c.id
					AND m.id > COALESCE(cm.last_read_message_id, 0)
					AND m.sender_id <> ?
					AND m.created_at >= ?
			) AS unread_count,
			(
				SELECT u.id
				FROM chat_members cm2
				JOIN app_users u ON u.id = cm2.user_id
				WHERE cm2.chat_id = c.id AND u.id <> ?
				ORDER BY u.id
				LIMIT 1
			) AS other_user_id,
			(
				SELECT COALESCE(NULLIF(TRIM(u.full_name), ''), u.username)
				FROM chat_members cm2
				JOIN app_users u ON u.id = cm2.user_id
				WHERE cm2.chat_id = c.id AND u.id <> ?
				ORDER BY u.id
				LIMIT 1
			) AS other_user_name,
			(
				SELECT COUNT(1) FROM chat_members cmx WHERE cmx.chat_id = c.id
			) AS member_count
		FROM chats c
		JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = ?
		ORDER BY c.updated_at DESC`,
		attachmentPlaceholder, userID, cutoff, userID, userID, userID).
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *ChatRepository) Members(ctx context.Context, chatID, me int64) ([]domain.MemberInfo, error) {
	var members []domain.MemberInfo
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id, u.username,
			COALESCE(NULLIF(TRIM(u.full_name), ''), u.username) AS name,
			u.full_name, u.is_active
		FROM chat_members cm
		JOIN app_users u ON u.id = cm.user_id
		WHERE cm.chat_id = ?
		ORDER BY CASE WHEN u.id = ? THEN 0 ELSE 1 END,
			COALESCE(NULLIF(TRIM(u.full_name), ''), u.username) ASC`,
		chatID, me).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *ChatRepository) MemberIDs(ctx context.Context, chatID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_id = ?", chatID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ChatRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ChatRepository) Invite(ctx context.Context, chatID int64, userIDs []int64) ([]int64, error) {
	existing, err := r.MemberIDs(ctx, chatID)
	if err != nil {
		return nil, err
	}

	candidates := lo.Uniq(lo.Filter(userIDs, func(id int64, _ int) bool { return id > 0 }))
	toAdd, _ := lo.Difference(candidates, existing)
	if len(toAdd) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// inviting a third person turns a direct chat into a group
		if err := tx.Model(&domain.Chat{}).
			Where("id = ? AND is_group = false", chatID).
			Update("is_group", true).Error; err != nil {
			return err
		}

		members := make([]domain.ChatMember, 0, len(toAdd))
		for _, id := range toAdd {
			members = append(members, domain.ChatMember{ChatID: chatID, UserID: id})
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Chat{}).
			Where("id = ?", chatID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return toAdd, nil
}

func (r *ChatRepository) Leave(ctx context.Context, chatID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&domain.ChatMember{}).Error
}

func (r *ChatRepository) MarkRead(ctx context.Context, chatID, userID, lastMessageID int64) error {
	if lastMessageID <= 0 {
		// nothing loaded yet: only record the visit
		return r.db.WithContext(ctx).
			Model(&domain.ChatMember{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Update("last_read_at", time.Now()).Error
	}

	// GREATEST keeps the watermark monotonic under racing read markers
	return r.db.WithContext(ctx).Exec(`
		UPDATE chat_members
		SET last_read_message_id = GREATEST(COALESCE(last_read_message_id, 0), ?),
			last_read_at = NOW()
		WHERE chat_id = ? AND user_id = ?`,
		lastMessageID, chatID, userID).Error
}

func (r *ChatRepository) MarkAllRead(ctx context.Context, userID int64) ([]domain.ChatWatermark, error) {
	err := r.db.WithContext(ctx).Exec(`
		UPDATE chat_members cm
		SET last_read_message_id = GREATEST(COALESCE(cm.last_read_message_id, 0), x.last_id),
			last_read_at = NOW()
		FROM (
			SELECT m.chat_id, MAX(m.id) AS last_id
			FROM chat_messages m
			GROUP BY m.chat_id
		) x
		WHERE x.chat_id = cm.chat_id AND cm.user_id = ?`, userID).Error
	if err != nil {
		return nil, err
	}

	var marks []struct {
		ChatID int64
		LastID int64
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT x.chat_id, x.last_id
		FROM (
			SELECT m.chat_id, MAX(m.id) AS last_id
			FROM chat_messages m
			GROUP BY m.chat_id
		) x
		JOIN chat_members cm ON cm.chat_id = x.chat_id AND cm.user_id = ?`, userID).
		Scan(&marks).Error
	if err != nil {
		return nil, err
	}

	watermarks := make([]domain.ChatWatermark, 0, len(marks))
	for _, m := range marks {
		watermarks = append(watermarks, domain.ChatWatermark{ChatID: m.ChatID, LastMessageID: m.LastID})
	}
	return watermarks, nil
}

func (r *ChatRepository) DisplayName(ctx context.Context, userID int64) (string, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}
