package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const presenceOnlineSet = "presence:online"

// PresenceStore tracks which users currently hold a live connection. The
// notification dispatcher consults it to decide between direct delivery and
// the offline queue.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetOnline marks a user as online.
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	pipe.Set(ctx, "presence:last_seen:"+userID, time.Now().UTC().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline marks a user as offline.
func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.SRem(ctx, presenceOnlineSet, userID)
	pipe.Set(ctx, "presence:last_seen:"+userID, time.Now().UTC().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// IsOnline checks membership in the online set.
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

// GetOnlineCount returns the count of online users.
func (p *PresenceStore) GetOnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}
