package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"wedhabesha-chat/internal/domain/notification"
	"wedhabesha-chat/internal/events"
	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageNotification(userID, content, priority string) MessageNotificationInput {
	return MessageNotificationInput{
		UserID:     userID,
		MessageID:  uuid.New(),
		ThreadID:   uuid.New(),
		SenderID:   "couple-1",
		SenderName: "couple",
		Content:    content,
		Priority:   priority,
	}
}

func TestFirstPreferenceWritePersistsOptOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// The very first write takes the row-creating path; the opt-out must
	// survive it rather than being reset by a column default.
	require.NoError(t, e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{
		UserID:             "vendor-1",
		EmailNotifications: true,
		PushNotifications:  false,
	}))

	prefs, err := e.notifier.GetUserNotificationPreferences(ctx, "vendor-1")
	require.NoError(t, err)
	assert.False(t, prefs.PushNotifications)
	assert.True(t, prefs.EmailNotifications)
	assert.False(t, prefs.SMSNotifications)
}

func TestNotificationRecordAlwaysCreated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Push disabled: no channel delivery, but the record still lands.
	require.NoError(t, e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{
		UserID:             "vendor-1",
		EmailNotifications: true,
		PushNotifications:  false,
	}))

	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "quiet delivery", "normal")))

	page, err := e.notifier.GetUserNotifications(ctx, "vendor-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Empty(t, e.rooms.userEvents)
	assert.Empty(t, e.queue.queued["vendor-1"])
}

func TestNotificationDeliveryOnlineVsOffline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.presence.online["vendor-1"] = true
	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "live one", "normal")))
	require.Len(t, e.rooms.userEvents, 1)
	assert.Equal(t, "vendor-1", e.rooms.userEvents[0].Target)
	assert.Equal(t, events.TypeNotification, e.rooms.userEvents[0].EventType)
	assert.Empty(t, e.queue.queued["vendor-1"])

	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-2", "queued one", "normal")))
	assert.Len(t, e.queue.queued["vendor-2"], 1)
	assert.Len(t, e.rooms.userEvents, 1)
}

func TestDeliverQueuedNotifications(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "first offline", "normal")))
	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "second offline", "high")))
	require.Len(t, e.queue.queued["vendor-1"], 2)

	delivered, err := e.notifier.DeliverQueuedNotifications(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Len(t, e.rooms.userEvents, 2)
	assert.Empty(t, e.queue.queued["vendor-1"])

	// Nothing left to flush.
	delivered, err = e.notifier.DeliverQueuedNotifications(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
}

func TestNotificationPreviewTruncation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	long := strings.Repeat("venue ", 40)
	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", long, "normal")))

	page, err := e.notifier.GetUserNotifications(ctx, "vendor-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)

	preview := page.Notifications[0].Message
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Len(t, []rune(preview), 103)

	var data notification.MessageData
	require.NoError(t, json.Unmarshal([]byte(page.Notifications[0].Data), &data))
	assert.Equal(t, preview, data.Preview)
}

func TestNotificationPriorityFidelity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, priority := range []string{"normal", "high", "urgent"} {
		require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "prio "+priority, priority)))
	}
	// Unknown priorities degrade to normal rather than failing.
	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "prio bogus", "critical")))

	page, err := e.notifier.GetUserNotifications(ctx, "vendor-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 4)

	seen := map[string]int{}
	for _, n := range page.Notifications {
		seen[n.Priority]++
	}
	assert.Equal(t, 2, seen["normal"])
	assert.Equal(t, 1, seen["high"])
	assert.Equal(t, 1, seen["urgent"])
}

func TestIsInQuietHours(t *testing.T) {
	at := func(hhmm string) time.Time {
		parsed, err := time.Parse("15:04", hhmm)
		require.NoError(t, err)
		return time.Date(2026, 8, 29, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	}

	// Same-day window.
	assert.True(t, IsInQuietHours("13:00", "15:00", at("13:00")))
	assert.True(t, IsInQuietHours("13:00", "15:00", at("14:59")))
	assert.False(t, IsInQuietHours("13:00", "15:00", at("15:00")))
	assert.False(t, IsInQuietHours("13:00", "15:00", at("12:59")))

	// Midnight wrap.
	assert.True(t, IsInQuietHours("22:00", "07:00", at("23:30")))
	assert.True(t, IsInQuietHours("22:00", "07:00", at("03:00")))
	assert.True(t, IsInQuietHours("22:00", "07:00", at("22:00")))
	assert.False(t, IsInQuietHours("22:00", "07:00", at("07:00")))
	assert.False(t, IsInQuietHours("22:00", "07:00", at("12:00")))

	// Degenerate windows never suppress.
	assert.False(t, IsInQuietHours("", "", at("03:00")))
	assert.False(t, IsInQuietHours("22:00", "", at("23:00")))
	assert.False(t, IsInQuietHours("22:00", "22:00", at("22:00")))
	assert.False(t, IsInQuietHours("bogus", "07:00", at("03:00")))
}

func TestQuietHoursSuppressChannelNotRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{
		UserID:            "vendor-1",
		PushNotifications: true,
		QuietHoursStart:   "00:00",
		QuietHoursEnd:     "23:59",
	}))
	e.notifier.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}
	e.presence.online["vendor-1"] = true

	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "hushed", "urgent")))

	page, err := e.notifier.GetUserNotifications(ctx, "vendor-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 1)
	assert.Empty(t, e.rooms.userEvents)
	assert.Empty(t, e.queue.queued["vendor-1"])
}

func TestNotificationReadTracking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "read me", "normal")))
	require.NoError(t, e.notifier.SendMessageNotification(ctx, messageNotification("vendor-1", "and me", "normal")))

	count, err := e.notifier.GetUnreadCount(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	page, err := e.notifier.GetUserNotifications(ctx, "vendor-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)

	require.NoError(t, e.notifier.MarkNotificationRead(ctx, page.Notifications[0].ID, "vendor-1"))

	count, err = e.notifier.GetUnreadCount(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Another user cannot mark someone else's notification.
	err = e.notifier.MarkNotificationRead(ctx, page.Notifications[1].ID, "vendor-2")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestUpdatePreferencesValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{UserID: " "})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	err = e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{
		UserID:          "vendor-1",
		QuietHoursStart: "22:00",
	})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	err = e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{
		UserID:          "vendor-1",
		QuietHoursStart: "25:99",
		QuietHoursEnd:   "07:00",
	})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	require.NoError(t, e.notifier.UpdateNotificationPreferences(ctx, notification.Preferences{
		UserID:          "vendor-1",
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "07:00",
	}))

	prefs, err := e.notifier.GetUserNotificationPreferences(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, "22:00", prefs.QuietHoursStart)

	// Unconfigured users get defaults, not an error.
	fallback, err := e.notifier.GetUserNotificationPreferences(ctx, "vendor-9")
	require.NoError(t, err)
	assert.True(t, fallback.PushNotifications)
	assert.True(t, fallback.EmailNotifications)
	assert.False(t, fallback.SMSNotifications)
}
