package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"zone-competition-service/internal/domain"
)

// EventLoader fetches event content from a backing store (e.g., document DB).
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// EventRepository caches event content with TTL to avoid repeated DB hits.
type EventRepository struct {
	loader EventLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedEvent
}

type cachedEvent struct {
	event     domain.Event
	expiresAt time.Time
}

func NewEventRepository(loader EventLoader, ttl time.Duration) *EventRepository {
	return &EventRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEvent),
	}
}

func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.event, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.event, nil
		}
		r.mu.RUnlock()

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		r.mu.Lock()
		r.cache[eventID] = cachedEvent{
			event:     event,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

// Invalidate drops the cached copy so the next read hits the loader.
func (r *EventRepository) Invalidate(_ context.Context, eventID string) error {
	r.mu.Lock()
	delete(r.cache, eventID)
	r.mu.Unlock()
	return nil
}

func (r *EventRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticEventLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticEventLoader struct {
	events map[string]domain.Event
}

func NewStaticEventLoader(events map[string]domain.Event) *StaticEventLoader {
	return &StaticEventLoader{events: events}
}

func (l *StaticEventLoader) LoadEvent(_ context.Context, eventID string) (domain.Event, error) {
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return domain.Event{}, domain.ErrEventNotFound
}
