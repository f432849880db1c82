package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wedhabesha-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// Room channel naming. Live delivery is addressed by thread room (both
// participants) or user room (one recipient).
func ThreadRoom(threadID string) string {
	return fmt.Sprintf("room:thread:%s", threadID)
}

func UserRoom(userID string) string {
	return fmt.Sprintf("room:user:%s", userID)
}

// RoomBus fans events out to redis pub/sub rooms.
type RoomBus struct {
	client *goredis.Client
	log    *logger.Logger
}

func NewRoomBus(client *goredis.Client, log *logger.Logger) *RoomBus {
	return &RoomBus{client: client, log: log}
}

func (b *RoomBus) Publish(ctx context.Context, room, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventType:  eventType,
		Room:       room,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, room, data).Err()
}

func (b *RoomBus) PublishToThread(ctx context.Context, threadID, eventType string, payload interface{}) error {
	return b.Publish(ctx, ThreadRoom(threadID), eventType, payload)
}

func (b *RoomBus) PublishToUser(ctx context.Context, userID, eventType string, payload interface{}) error {
	return b.Publish(ctx, UserRoom(userID), eventType, payload)
}

// Subscribe starts listening on a room and returns a channel of envelopes.
// The channel closes when ctx is cancelled.
func (b *RoomBus) Subscribe(ctx context.Context, room string) <-chan Envelope {
	out := make(chan Envelope, 16)
	pubsub := b.client.Subscribe(ctx, room)

	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					if b.log != nil {
						b.log.Warnf("room %s: dropping malformed envelope: %v", room, err)
					}
					continue
				}
				out <- env
			}
		}
	}()

	return out
}
