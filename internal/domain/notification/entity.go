package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification represents the notifications table. A row is created for every
// inbound message regardless of the recipient's online state or channel
// preferences; read state is tracked independently per record.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"size:64;not null;index:idx_notifications_user_created,priority:1"`
	Type      string    `gorm:"size:32;not null"`
	Title     string    `gorm:"size:255;not null"`
	Message   string    `gorm:"size:255;not null"`
	Data      string    `gorm:"type:text"`
	Priority  string    `gorm:"size:16;not null;default:normal"`
	IsRead    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_notifications_user_created,priority:2"`
}

// MessageData is the JSON payload embedded in a message notification.
type MessageData struct {
	MessageID  string `json:"message_id"`
	ThreadID   string `json:"thread_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Preview    string `json:"preview"`
	Priority   string `json:"priority"`
}

// Preferences represents notification_preferences, one row per user.
// Quiet hours are wall-clock "HH:MM" strings and may wrap midnight.
// The bool columns carry no column defaults: a default tag makes gorm omit
// zero-value fields from the INSERT, turning a stored opt-out back into true.
// Defaults live in DefaultPreferences instead.
type Preferences struct {
	UserID             string `gorm:"size:64;primaryKey"`
	EmailNotifications bool   `gorm:"not null"`
	PushNotifications  bool   `gorm:"not null"`
	SMSNotifications   bool   `gorm:"not null"`
	QuietHoursStart    string `gorm:"size:5"`
	QuietHoursEnd      string `gorm:"size:5"`
	UpdatedAt          time.Time
}

// DefaultPreferences returns the preferences applied before a user configures
// anything.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:             userID,
		EmailNotifications: true,
		PushNotifications:  true,
		SMSNotifications:   false,
	}
}

func (Notification) TableName() string {
	return "notifications"
}

func (Preferences) TableName() string {
	return "notification_preferences"
}
