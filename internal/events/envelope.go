package events

import (
	"encoding/json"
	"time"
)

// Event types carried over the room bus.
const (
	TypeMessageNew   = "message:new"
	TypeTyping       = "typing"
	TypeNotification = "notification"
)

type Envelope struct {
	EventType  string          `json:"event_type"`
	Room       string          `json:"room"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
