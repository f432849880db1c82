package repository

import (
	"context"
	"errors"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/thread"
	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &PostgresThreadRepository{db: db}
}

func (r *PostgresThreadRepository) Create(ctx context.Context, t *thread.Thread) error {
	res := r.db.WithContext(ctx).Create(t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresThreadRepository) GetByID(ctx context.Context, id uuid.UUID) (thread.Thread, error) {
	var t thread.Thread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return thread.Thread{}, chat_errors.ErrNotFound
		}
		return thread.Thread{}, err
	}
	return t, nil
}

func (r *PostgresThreadRepository) GetByParticipants(ctx context.Context, coupleID, vendorID string) (thread.Thread, error) {
	var t thread.Thread
	err := r.db.WithContext(ctx).
		Where("couple_id = ? AND vendor_id = ?", coupleID, vendorID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return thread.Thread{}, chat_errors.ErrNotFound
		}
		return thread.Thread{}, err
	}
	return t, nil
}

func (r *PostgresThreadRepository) GetForUser(ctx context.Context, userID string, ptype domain.ParticipantType, limit, offset int, includeInactive bool) ([]thread.Thread, int64, error) {
	var threads []thread.Thread
	var total int64

	q := r.db.WithContext(ctx).
		Model(&thread.Thread{}).
		Where(participantColumn(ptype)+" = ?", userID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}

	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Session(&gorm.Session{}).
		Order("last_message_at DESC NULLS LAST").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&threads).Error
	if err != nil {
		return nil, 0, err
	}
	return threads, total, nil
}

func (r *PostgresThreadRepository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&thread.Thread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_at": at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresThreadRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&thread.Thread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
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

func (r *PostgresThreadRepository) StatsForUser(ctx context.Context, userID string, ptype domain.ParticipantType) (thread.Stats, error) {
	var stats thread.Stats
	base := r.db.WithContext(ctx).
		Model(&thread.Thread{}).
		Where(participantColumn(ptype)+" = ?", userID)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalThreads).Error; err != nil {
		return thread.Stats{}, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&stats.ActiveThreads).Error; err != nil {
		return thread.Stats{}, err
	}
	stats.ArchivedThreads = stats.TotalThreads - stats.ActiveThreads
	return stats, nil
}

func participantColumn(ptype domain.ParticipantType) string {
	if ptype == domain.ParticipantVendor {
		return "vendor_id"
	}
	return "couple_id"
}
