package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const deliveryQueuePrefix = "notifications:queue:"

// DeliveryQueue buffers notification payloads for offline users. The queue is
// a delivery aid only; the durable source of truth is the notifications
// table, which drain never touches.
type DeliveryQueue struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewDeliveryQueue(client *goredis.Client, ttl time.Duration) *DeliveryQueue {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &DeliveryQueue{client: client, ttl: ttl}
}

func (q *DeliveryQueue) Enqueue(ctx context.Context, userID string, payload []byte) error {
	key := deliveryQueuePrefix + userID
	pipe := q.client.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, q.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Drain atomically removes and returns every queued payload for the user.
func (q *DeliveryQueue) Drain(ctx context.Context, userID string) ([][]byte, error) {
	key := deliveryQueuePrefix + userID

	var items []string
	pipe := q.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, err
	}
	items = rangeCmd.Val()

	payloads := make([][]byte, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, []byte(item))
	}
	return payloads, nil
}

// Len reports the number of queued payloads.
func (q *DeliveryQueue) Len(ctx context.Context, userID string) (int64, error) {
	return q.client.LLen(ctx, deliveryQueuePrefix+userID).Result()
}
