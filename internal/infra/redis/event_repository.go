package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"zone-competition-service/internal/domain"
)

// EventLoader fetches event content from a backing store (e.g., document DB).
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// EventRepository caches event content in Redis and falls back to a loader on
// cache miss. Content is stored as: SET event:{eventID}:content {json}
type EventRepository struct {
	client *redis.Client
	loader EventLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewEventRepository(client *redis.Client, loader EventLoader, ttl time.Duration) *EventRepository {
	return &EventRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	key := r.contentKey(eventID)

	if event, ok := r.fromCache(ctx, key); ok {
		return event, nil
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if event, ok := r.fromCache(ctx, key); ok {
			return event, nil
		}

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		if raw, err := json.Marshal(event); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

// Invalidate drops the cached content so the next read hits the loader.
func (r *EventRepository) Invalidate(ctx context.Context, eventID string) error {
	return r.client.Del(ctx, r.contentKey(eventID)).Err()
}

func (r *EventRepository) fromCache(ctx context.Context, key string) (domain.Event, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil and transport errors both count as a miss.
		return domain.Event{}, false
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, false
	}
	return event, true
}

func (r *EventRepository) contentKey(eventID string) string {
	return "event:" + eventID + ":content"
}

func (r *EventRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
