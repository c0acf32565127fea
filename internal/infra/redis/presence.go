package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore tracks viewer heartbeats in a sorted set per event, scored by
// heartbeat time: ZADD event:{eventID}:presence {unix} {userID}. Counting
// trims members older than the TTL first, so disconnected viewers age out.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return NewPresenceStoreWithClock(client, ttl, time.Now)
}

func NewPresenceStoreWithClock(client *redis.Client, ttl time.Duration, clock func() time.Time) *PresenceStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl, clock: clock}
}

func (p *PresenceStore) Heartbeat(ctx context.Context, eventID, userID string) error {
	key := p.key(eventID)
	pipe := p.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(p.clock().Unix()), Member: userID})
	// Keep the whole set from lingering after the event empties out.
	pipe.Expire(ctx, key, 2*p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) Count(ctx context.Context, eventID string) (int, error) {
	key := p.key(eventID)
	cutoff := p.clock().Add(-p.ttl).Unix()
	if err := p.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	count, err := p.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (p *PresenceStore) key(eventID string) string {
	return "event:" + eventID + ":presence"
}
