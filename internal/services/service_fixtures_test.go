package services

import (
	"context"
	"sync"
	"testing"

	"wedhabesha-chat/internal/crypto"
	"wedhabesha-chat/internal/domain/audit"
	"wedhabesha-chat/internal/domain/message"
	"wedhabesha-chat/internal/domain/notification"
	"wedhabesha-chat/internal/domain/thread"
	"wedhabesha-chat/internal/proxy"
	"wedhabesha-chat/internal/repository"
	"wedhabesha-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testMasterHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&thread.Thread{},
		&message.Message{},
		&message.ReadStatus{},
		&message.Attachment{},
		&audit.AccessLogEntry{},
		&notification.Notification{},
		&notification.Preferences{},
	))
	return db
}

// fakeRooms records published room events.
type fakeRooms struct {
	mu           sync.Mutex
	threadEvents []fakeRoomEvent
	userEvents   []fakeRoomEvent
	err          error
}

type fakeRoomEvent struct {
	Target    string
	EventType string
	Payload   interface{}
}

func (f *fakeRooms) PublishToThread(_ context.Context, threadID, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.threadEvents = append(f.threadEvents, fakeRoomEvent{Target: threadID, EventType: eventType, Payload: payload})
	return nil
}

func (f *fakeRooms) PublishToUser(_ context.Context, userID, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.userEvents = append(f.userEvents, fakeRoomEvent{Target: userID, EventType: eventType, Payload: payload})
	return nil
}

// fakePresence marks listed users as online.
type fakePresence struct {
	online map[string]bool
	err    error
}

func (f *fakePresence) IsOnline(_ context.Context, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.online[userID], nil
}

// fakeQueue is an in-memory offline delivery queue.
type fakeQueue struct {
	mu     sync.Mutex
	queued map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{queued: make(map[string][][]byte)}
}

func (f *fakeQueue) Enqueue(_ context.Context, userID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[userID] = append(f.queued[userID], payload)
	return nil
}

func (f *fakeQueue) Drain(_ context.Context, userID string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.queued[userID]
	delete(f.queued, userID)
	return items, nil
}

// env bundles the fully wired service stack over one in-memory database.
type env struct {
	db         *gorm.DB
	engine     *crypto.Engine
	threads    repository.ThreadRepository
	messages   repository.MessageRepository
	audits     repository.AuditRepository
	access     *proxy.AccessControl
	rooms      *fakeRooms
	presence   *fakePresence
	queue      *fakeQueue
	notifier   *NotificationService
	messageSvc *MessageService
	threadSvc  *ThreadService
	notifyRepo repository.NotificationRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)

	keys, err := crypto.NewKeyStore(testMasterHex)
	require.NoError(t, err)
	engine := crypto.NewEngine(keys)

	threads := repository.NewThreadRepository(db)
	messages := repository.NewMessageRepository(db)
	audits := repository.NewAuditRepository(db, 0)
	notifyRepo := repository.NewNotificationRepository(db)
	access := proxy.NewAccessControl(threads, messages, audits, logger.NewNop())

	rooms := &fakeRooms{}
	presence := &fakePresence{online: map[string]bool{}}
	queue := newFakeQueue()
	notifier := NewNotificationService(notifyRepo, presence, queue, rooms, logger.NewNop())

	return &env{
		db:         db,
		engine:     engine,
		threads:    threads,
		messages:   messages,
		audits:     audits,
		access:     access,
		rooms:      rooms,
		presence:   presence,
		queue:      queue,
		notifier:   notifier,
		messageSvc: NewMessageService(db, messages, threads, access, engine, notifier, rooms, NewMimeFileValidator(), logger.NewNop()),
		threadSvc:  NewThreadService(threads, messages, access, logger.NewNop()),
		notifyRepo: notifyRepo,
	}
}

func (e *env) createThread(t *testing.T, coupleID, vendorID string) thread.Thread {
	t.Helper()
	tr := thread.Thread{
		ID:       uuid.New(),
		CoupleID: coupleID,
		VendorID: vendorID,
		IsActive: true,
	}
	require.NoError(t, e.threads.Create(context.Background(), &tr))
	return tr
}
