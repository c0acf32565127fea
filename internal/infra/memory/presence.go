package memory

import (
	"context"
	"sync"
	"time"
)

// PresenceStore tracks viewer heartbeats in memory. Entries older than the
// TTL fall out of the count on the next read.
type PresenceStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.Mutex
	seen map[string]map[string]time.Time
}

func NewPresenceStore(ttl time.Duration) *PresenceStore {
	return NewPresenceStoreWithClock(ttl, time.Now)
}

func NewPresenceStoreWithClock(ttl time.Duration, clock func() time.Time) *PresenceStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PresenceStore{
		ttl:   ttl,
		clock: clock,
		seen:  make(map[string]map[string]time.Time),
	}
}

func (p *PresenceStore) Heartbeat(_ context.Context, eventID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[eventID] == nil {
		p.seen[eventID] = make(map[string]time.Time)
	}
	p.seen[eventID][userID] = p.clock()
	return nil
}

func (p *PresenceStore) Count(_ context.Context, eventID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.clock().Add(-p.ttl)
	users := p.seen[eventID]
	for userID, last := range users {
		if last.Before(cutoff) {
			delete(users, userID)
		}
	}
	if len(users) == 0 {
		delete(p.seen, eventID)
		return 0, nil
	}
	return len(users), nil
}
