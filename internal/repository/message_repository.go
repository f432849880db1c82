package repository

import (
	"context"
	"errors"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/message"
	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, chat_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

// GetThreadMessages returns the thread's messages in stable order, oldest
// first with id as tie-break. Soft-deleted rows are included; continuity for
// the non-deleting participant is handled above this layer.
func (r *PostgresMessageRepository) GetThreadMessages(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]message.Message, int64, error) {
	var messages []message.Message
	var total int64

	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("thread_id = ?", threadID)

	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Session(&gorm.Session{}).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// GetActiveThreadMessages returns non-deleted messages only, capped. Used by
// search, which must not surface rows the sender removed.
func (r *PostgresMessageRepository) GetActiveThreadMessages(ctx context.Context, threadID uuid.UUID, cap int) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND is_deleted = ?", threadID, false).
		Order("created_at ASC").
		Order("id ASC").
		Limit(cap).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) CreateReadStatus(ctx context.Context, rs *message.ReadStatus) error {
	res := r.db.WithContext(ctx).Create(rs)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetReadStatus(ctx context.Context, messageID uuid.UUID, userID string) (message.ReadStatus, error) {
	var rs message.ReadStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&rs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.ReadStatus{}, chat_errors.ErrNotFound
		}
		return message.ReadStatus{}, err
	}
	return rs, nil
}

// CountUnreadForUser counts messages from the other participant that this
// user has no read-status row for.
func (r *PostgresMessageRepository) CountUnreadForUser(ctx context.Context, threadID uuid.UUID, userID string) (int64, error) {
	subQuery := r.db.Model(&message.ReadStatus{}).
		Select("message_id").
		Where("user_id = ?", userID)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("thread_id = ? AND sender_id != ? AND is_deleted = ? AND id NOT IN (?)",
			threadID, userID, false, subQuery).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresMessageRepository) CountForThread(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("thread_id = ?", threadID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresMessageRepository) Stats(ctx context.Context, threadID uuid.UUID) (message.ThreadMessageStats, error) {
	var stats message.ThreadMessageStats
	base := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("thread_id = ?", threadID)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalMessages).Error; err != nil {
		return message.ThreadMessageStats{}, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_deleted = ?", false).Count(&stats.ActiveMessages).Error; err != nil {
		return message.ThreadMessageStats{}, err
	}
	stats.DeletedMessages = stats.TotalMessages - stats.ActiveMessages

	if err := base.Session(&gorm.Session{}).
		Where("is_deleted = ? AND status = ?", false, string(domain.StatusRead)).
		Count(&stats.ReadMessages).Error; err != nil {
		return message.ThreadMessageStats{}, err
	}
	stats.UnreadMessages = stats.ActiveMessages - stats.ReadMessages
	return stats, nil
}

func (r *PostgresMessageRepository) CreateAttachment(ctx context.Context, a *message.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *PostgresMessageRepository) GetAttachments(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error) {
	var attachments []message.Attachment
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}
