package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wedhabesha-chat/internal/events"
	"wedhabesha-chat/internal/proxy"
	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	ThreadID  string
	EventType string
}

type fakeBus struct {
	mu        sync.Mutex
	published []publishedEvent
	feed      chan events.Envelope
}

func newFakeBus() *fakeBus {
	return &fakeBus{feed: make(chan events.Envelope, 4)}
}

func (f *fakeBus) Subscribe(_ context.Context, _ string) <-chan events.Envelope {
	return f.feed
}

func (f *fakeBus) PublishToThread(_ context.Context, threadID, eventType string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedEvent{ThreadID: threadID, EventType: eventType})
	return nil
}

func (f *fakeBus) publishes() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.published))
	copy(out, f.published)
	return out
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[string]bool)}
}

func (f *fakePresence) SetOnline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = true
	return nil
}

func (f *fakePresence) SetOffline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = false
	return nil
}

func (f *fakePresence) isOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

// fakeAuthorizer grants the listed thread ids and counts checks.
type fakeAuthorizer struct {
	mu      sync.Mutex
	granted map[string]bool
	checks  int
}

func (f *fakeAuthorizer) VerifyThreadAccess(_ context.Context, _, _ string, threadID uuid.UUID) proxy.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.granted[threadID.String()] {
		return proxy.Decision{Authorized: true}
	}
	return proxy.Decision{Authorized: false, Reason: proxy.ReasonNotParticipant}
}

func (f *fakeAuthorizer) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type fakeDeliverer struct {
	mu      sync.Mutex
	flushed []string
}

func (f *fakeDeliverer) DeliverQueuedNotifications(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, userID)
	return 1, nil
}

func (f *fakeDeliverer) flushedFor(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.flushed {
		if u == userID {
			return true
		}
	}
	return false
}

func dialSocket(t *testing.T, h *Handler, id services.Identity) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithIdentityContext(c.Request.Context(), id))
		h.Serve(c)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func typingFrame(threadID string) inbound {
	return inbound{EventType: events.TypeTyping, ThreadID: threadID}
}

func TestServePresenceAndQueuedFlush(t *testing.T) {
	bus := newFakeBus()
	presence := newFakePresence()
	deliverer := &fakeDeliverer{}
	h := &Handler{
		bus:      bus,
		presence: presence,
		access:   &fakeAuthorizer{granted: map[string]bool{}},
		notifier: deliverer,
		log:      logger.NewNop(),
	}

	conn := dialSocket(t, h, services.Identity{UserID: "vendor-1", UserType: "vendor"})

	require.Eventually(t, func() bool {
		return presence.isOnline("vendor-1") && deliverer.flushedFor("vendor-1")
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return !presence.isOnline("vendor-1")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnvelopesReachTheClient(t *testing.T) {
	bus := newFakeBus()
	h := &Handler{
		bus:      bus,
		presence: newFakePresence(),
		access:   &fakeAuthorizer{granted: map[string]bool{}},
		log:      logger.NewNop(),
	}

	conn := dialSocket(t, h, services.Identity{UserID: "couple-1", UserType: "couple"})

	bus.feed <- events.Envelope{EventType: events.TypeNotification, Room: events.UserRoom("couple-1")}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env events.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, events.TypeNotification, env.EventType)
}

func TestTypingRelayRequiresThreadAccess(t *testing.T) {
	allowed := uuid.New()
	denied := uuid.New()

	bus := newFakeBus()
	auth := &fakeAuthorizer{granted: map[string]bool{allowed.String(): true}}
	h := &Handler{
		bus:      bus,
		presence: newFakePresence(),
		access:   auth,
		log:      logger.NewNop(),
	}

	conn := dialSocket(t, h, services.Identity{UserID: "couple-1", UserType: "couple"})

	// Frames for foreign and malformed thread ids must never reach the room.
	require.NoError(t, conn.WriteJSON(typingFrame(denied.String())))
	require.NoError(t, conn.WriteJSON(typingFrame("not-a-uuid")))
	require.NoError(t, conn.WriteJSON(typingFrame(allowed.String())))

	require.Eventually(t, func() bool {
		return len(bus.publishes()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	published := bus.publishes()
	assert.Equal(t, allowed.String(), published[0].ThreadID)
	assert.Equal(t, events.TypeTyping, published[0].EventType)
}

func TestTypingRelayCachesGrantPerConnection(t *testing.T) {
	allowed := uuid.New()

	bus := newFakeBus()
	auth := &fakeAuthorizer{granted: map[string]bool{allowed.String(): true}}
	h := &Handler{
		bus:      bus,
		presence: newFakePresence(),
		access:   auth,
		log:      logger.NewNop(),
	}

	conn := dialSocket(t, h, services.Identity{UserID: "couple-1", UserType: "couple"})

	require.NoError(t, conn.WriteJSON(typingFrame(allowed.String())))
	require.NoError(t, conn.WriteJSON(typingFrame(allowed.String())))

	require.Eventually(t, func() bool {
		return len(bus.publishes()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, auth.checkCount())
}
