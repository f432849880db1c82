package repository

import (
	"context"
	"errors"
	"time"

	"wedhabesha-chat/internal/domain/notification"
	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]notification.Notification, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var items []notification.Notification
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetPreferences returns the stored preferences or the defaults if the user
// never configured any.
func (r *PostgresNotificationRepository) GetPreferences(ctx context.Context, userID string) (notification.Preferences, error) {
	var p notification.Preferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notification.DefaultPreferences(userID), nil
		}
		return notification.Preferences{}, err
	}
	return p, nil
}

func (r *PostgresNotificationRepository) UpsertPreferences(ctx context.Context, p *notification.Preferences) error {
	p.UpdatedAt = time.Now()
	existing := notification.Preferences{}
	err := r.db.WithContext(ctx).Where("user_id = ?", p.UserID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(p).Error
		}
		return err
	}
	return r.db.WithContext(ctx).
		Model(&notification.Preferences{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]interface{}{
			"email_notifications": p.EmailNotifications,
			"push_notifications":  p.PushNotifications,
			"sms_notifications":   p.SMSNotifications,
			"quiet_hours_start":   p.QuietHoursStart,
			"quiet_hours_end":     p.QuietHoursEnd,
			"updated_at":          p.UpdatedAt,
		}).Error
}
