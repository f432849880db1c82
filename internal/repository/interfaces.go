package repository

import (
	"context"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/audit"
	"wedhabesha-chat/internal/domain/message"
	"wedhabesha-chat/internal/domain/notification"
	"wedhabesha-chat/internal/domain/thread"

	"github.com/google/uuid"
)

// ThreadRepository owns thread persistence.
type ThreadRepository interface {
	Create(ctx context.Context, t *thread.Thread) error
	GetByID(ctx context.Context, id uuid.UUID) (thread.Thread, error)
	GetByParticipants(ctx context.Context, coupleID, vendorID string) (thread.Thread, error)
	GetForUser(ctx context.Context, userID string, ptype domain.ParticipantType, limit, offset int, includeInactive bool) ([]thread.Thread, int64, error)
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	StatsForUser(ctx context.Context, userID string, ptype domain.ParticipantType) (thread.Stats, error)
}

// MessageRepository owns message, read-status and attachment persistence.
type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	GetThreadMessages(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]message.Message, int64, error)
	GetActiveThreadMessages(ctx context.Context, threadID uuid.UUID, cap int) ([]message.Message, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateReadStatus(ctx context.Context, rs *message.ReadStatus) error
	GetReadStatus(ctx context.Context, messageID uuid.UUID, userID string) (message.ReadStatus, error)
	CountUnreadForUser(ctx context.Context, threadID uuid.UUID, userID string) (int64, error)
	CountForThread(ctx context.Context, threadID uuid.UUID) (int64, error)
	Stats(ctx context.Context, threadID uuid.UUID) (message.ThreadMessageStats, error)
	CreateAttachment(ctx context.Context, a *message.Attachment) error
	GetAttachments(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error)
}

// AuditRepository owns the append-only access trail.
type AuditRepository interface {
	Create(ctx context.Context, e *audit.AccessLogEntry) error
	List(ctx context.Context, userID string, limit int, resultFilter string) ([]audit.AccessLogEntry, error)
	Stats(ctx context.Context, userID string, since time.Time) (audit.SecurityStats, error)
	CountDenied(ctx context.Context, userID string, since time.Time) (int64, error)
}

// NotificationRepository owns notification records and per-user preferences.
type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	MarkRead(ctx context.Context, id uuid.UUID, userID string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]notification.Notification, int64, error)
	GetPreferences(ctx context.Context, userID string) (notification.Preferences, error)
	UpsertPreferences(ctx context.Context, p *notification.Preferences) error
}
