package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wedhabesha-chat/internal/domain"
	"wedhabesha-chat/internal/domain/notification"
	"wedhabesha-chat/internal/events"
	"wedhabesha-chat/internal/repository"
	chat_errors "wedhabesha-chat/pkg/errors"
	"wedhabesha-chat/pkg/logger"

	"github.com/google/uuid"
)

const (
	previewMaxRunes  = 100
	notificationPage = 20
)

// PresenceChecker answers whether a user currently holds a live connection.
// Satisfied by redis.PresenceStore; faked in tests.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// QueueStore buffers payloads for offline users. Satisfied by
// redis.DeliveryQueue; faked in tests.
type QueueStore interface {
	Enqueue(ctx context.Context, userID string, payload []byte) error
	Drain(ctx context.Context, userID string) ([][]byte, error)
}

// NotificationService creates notification records and routes channel
// delivery through preferences, quiet hours and presence.
type NotificationService struct {
	repo     repository.NotificationRepository
	presence PresenceChecker
	queue    QueueStore
	rooms    RoomPublisher
	log      *logger.Logger
	now      func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, presence PresenceChecker, queue QueueStore, rooms RoomPublisher, log *logger.Logger) *NotificationService {
	return &NotificationService{
		repo:     repo,
		presence: presence,
		queue:    queue,
		rooms:    rooms,
		log:      log,
		now:      time.Now,
	}
}

type MessageNotificationInput struct {
	UserID     string
	MessageID  uuid.UUID
	ThreadID   uuid.UUID
	SenderID   string
	SenderName string
	Content    string
	Priority   string
}

// SendMessageNotification always persists the notification record; channel
// delivery on top of it is governed by preferences and quiet hours. The
// message priority is carried through unchanged.
func (s *NotificationService) SendMessageNotification(ctx context.Context, in MessageNotificationInput) error {
	priority := domain.ParsePriority(in.Priority)
	preview := truncatePreview(in.Content)

	data, err := json.Marshal(notification.MessageData{
		MessageID:  in.MessageID.String(),
		ThreadID:   in.ThreadID.String(),
		SenderID:   in.SenderID,
		SenderName: in.SenderName,
		Preview:    preview,
		Priority:   string(priority),
	})
	if err != nil {
		return err
	}

	record := notification.Notification{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Type:      "new_message",
		Title:     "New message",
		Message:   preview,
		Data:      string(data),
		Priority:  string(priority),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		return err
	}

	prefs, err := s.repo.GetPreferences(ctx, in.UserID)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("user %s: preference lookup failed, using defaults: %v", in.UserID, err)
		}
		prefs = notification.DefaultPreferences(in.UserID)
	}
	if !prefs.PushNotifications {
		return nil
	}
	if IsInQuietHours(prefs.QuietHoursStart, prefs.QuietHoursEnd, s.now()) {
		return nil
	}

	s.deliver(ctx, in.UserID, record)
	return nil
}

// deliver routes one record to the live room or the offline queue. Failures
// are logged, never surfaced: the durable record already exists.
func (s *NotificationService) deliver(ctx context.Context, userID string, record notification.Notification) {
	online := false
	if s.presence != nil {
		var err error
		online, err = s.presence.IsOnline(ctx, userID)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("user %s: presence check failed, queueing: %v", userID, err)
			}
			online = false
		}
	}

	if online && s.rooms != nil {
		if err := s.rooms.PublishToUser(ctx, userID, events.TypeNotification, record); err == nil {
			return
		} else if s.log != nil {
			s.log.Warnf("user %s: live delivery failed, queueing: %v", userID, err)
		}
	}

	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.queue.Enqueue(ctx, userID, payload); err != nil && s.log != nil {
		s.log.Warnf("user %s: notification enqueue failed: %v", userID, err)
	}
}

// DeliverQueuedNotifications drains the user's offline queue onto their live
// room. Call on connect. Returns the number of payloads flushed.
func (s *NotificationService) DeliverQueuedNotifications(ctx context.Context, userID string) (int, error) {
	if s.queue == nil {
		return 0, nil
	}
	payloads, err := s.queue.Drain(ctx, userID)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, payload := range payloads {
		if s.rooms == nil {
			break
		}
		if err := s.rooms.PublishToUser(ctx, userID, events.TypeNotification, json.RawMessage(payload)); err != nil {
			if s.log != nil {
				s.log.Warnf("user %s: queued delivery failed: %v", userID, err)
			}
			continue
		}
		delivered++
	}
	return delivered, nil
}

// IsInQuietHours reports whether now falls inside the [start, end) window.
// Windows that cross midnight (e.g. 22:00 to 07:00) wrap. Empty, malformed
// or zero-length windows never suppress delivery.
func IsInQuietHours(start, end string, now time.Time) bool {
	if start == "" || end == "" || start == end {
		return false
	}
	startMin, ok := parseClock(start)
	if !ok {
		return false
	}
	endMin, ok := parseClock(end)
	if !ok {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()
	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func parseClock(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewMaxRunes {
		return content
	}
	return string(runes[:previewMaxRunes]) + "..."
}

// NotificationPage is one page of a user's notifications, newest first.
type NotificationPage struct {
	Notifications []notification.Notification `json:"notifications"`
	Total         int64                       `json:"total"`
	HasMore       bool                        `json:"has_more"`
}

func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string, limit, offset int) (*NotificationPage, error) {
	if limit <= 0 {
		limit = notificationPage
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, total, err := s.repo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{
		Notifications: rows,
		Total:         total,
		HasMore:       int64(offset+len(rows)) < total,
	}, nil
}

func (s *NotificationService) MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) GetUserNotificationPreferences(ctx context.Context, userID string) (notification.Preferences, error) {
	return s.repo.GetPreferences(ctx, userID)
}

// UpdateNotificationPreferences validates and upserts the user's preferences.
// Quiet hours must be HH:MM or empty, and set together or not at all.
func (s *NotificationService) UpdateNotificationPreferences(ctx context.Context, prefs notification.Preferences) error {
	if strings.TrimSpace(prefs.UserID) == "" {
		return fmt.Errorf("user id is required: %w", chat_errors.ErrInvalidInput)
	}
	if (prefs.QuietHoursStart == "") != (prefs.QuietHoursEnd == "") {
		return fmt.Errorf("quiet hours must set both start and end: %w", chat_errors.ErrInvalidInput)
	}
	for _, v := range []string{prefs.QuietHoursStart, prefs.QuietHoursEnd} {
		if v == "" {
			continue
		}
		if _, ok := parseClock(v); !ok {
			return fmt.Errorf("invalid quiet hours value %q, expected HH:MM: %w", v, chat_errors.ErrInvalidInput)
		}
	}
	return s.repo.UpsertPreferences(ctx, &prefs)
}
