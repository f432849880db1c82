package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wedhabesha-chat/internal/events"
	"wedhabesha-chat/internal/proxy"
	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventBus is the slice of the room bus the connection needs: the user's own
// room feed plus the ability to relay typing signals into thread rooms.
type EventBus interface {
	Subscribe(ctx context.Context, room string) <-chan events.Envelope
	PublishToThread(ctx context.Context, threadID, eventType string, payload interface{}) error
}

// Presence marks the connection owner online for the dispatcher.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// ThreadAuthorizer decides whether the connection owner may address a thread
// room. Satisfied by proxy.AccessControl.
type ThreadAuthorizer interface {
	VerifyThreadAccess(ctx context.Context, userID, userType string, threadID uuid.UUID) proxy.Decision
}

// QueuedDeliverer flushes notifications queued while the user was offline.
type QueuedDeliverer interface {
	DeliverQueuedNotifications(ctx context.Context, userID string) (int, error)
}

// Handler bridges one websocket connection to the user's room. On connect the
// user is marked online and any notifications queued while they were offline
// are flushed; on disconnect they are marked offline again.
type Handler struct {
	bus      EventBus
	presence Presence
	access   ThreadAuthorizer
	notifier QueuedDeliverer
	log      *logger.Logger
}

func NewHandler(bus EventBus, presence Presence, access ThreadAuthorizer, notifier *services.NotificationService, log *logger.Logger) *Handler {
	h := &Handler{
		bus:      bus,
		presence: presence,
		access:   access,
		log:      log,
	}
	if notifier != nil {
		h.notifier = notifier
	}
	return h
}

// inbound is the only client-to-server frame shape we accept.
type inbound struct {
	EventType string          `json:"event_type"`
	ThreadID  string          `json:"thread_id"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *Handler) Serve(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Warnf("user %s: websocket upgrade failed: %v", id.UserID, err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()

	if err := h.presence.SetOnline(ctx, id.UserID); err != nil && h.log != nil {
		h.log.Warnf("user %s: presence set online failed: %v", id.UserID, err)
	}
	defer func() {
		if err := h.presence.SetOffline(context.Background(), id.UserID); err != nil && h.log != nil {
			h.log.Warnf("user %s: presence set offline failed: %v", id.UserID, err)
		}
	}()

	envelopes := h.bus.Subscribe(ctx, events.UserRoom(id.UserID))

	if h.notifier != nil {
		if n, err := h.notifier.DeliverQueuedNotifications(ctx, id.UserID); err != nil {
			if h.log != nil {
				h.log.Warnf("user %s: queued notification flush failed: %v", id.UserID, err)
			}
		} else if n > 0 && h.log != nil {
			h.log.Infof("user %s: flushed %d queued notifications", id.UserID, n)
		}
	}

	go h.writeLoop(ctx, cancel, conn, envelopes)
	h.readLoop(ctx, cancel, conn, id)
}

func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, envelopes <-chan events.Envelope) {
	defer cancel()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id services.Identity) {
	defer cancel()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Grants are cached for the connection's lifetime; denials are re-checked.
	granted := make(map[string]bool)

	for {
		var frame inbound
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.EventType {
		case events.TypeTyping:
			threadID, err := uuid.Parse(frame.ThreadID)
			if err != nil {
				continue
			}
			if !granted[frame.ThreadID] {
				decision := h.access.VerifyThreadAccess(ctx, id.UserID, id.UserType, threadID)
				if !decision.Authorized {
					if h.log != nil {
						h.log.Warnf("user %s: typing relay to thread %s refused: %s", id.UserID, frame.ThreadID, decision.Reason)
					}
					continue
				}
				granted[frame.ThreadID] = true
			}
			payload := gin.H{"user_id": id.UserID, "user_type": id.UserType}
			if err := h.bus.PublishToThread(ctx, frame.ThreadID, events.TypeTyping, payload); err != nil && h.log != nil {
				h.log.Warnf("user %s: typing publish failed: %v", id.UserID, err)
			}
		default:
			// Unknown frames are dropped.
		}
	}
}
