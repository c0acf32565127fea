package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"zone-competition-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - It still keeps a local in-memory map of sessions to reuse the existing
//     in-process broadcast logic.
//   - Redis is used to mark session liveness (and could be extended to share
//     snapshots or route cross-instance pub/sub).
//   - For true distribution you'd pair this with a pub/sub projector that fans out updates.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.EventSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.EventSession),
	}
}

func (s *SessionStore) GetOrCreate(eventID string) *app.EventSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[eventID]; ok {
		return session
	}
	session := app.NewSession(eventID)
	s.sessions[eventID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(eventID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(eventID string) (*app.EventSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[eventID]
	return session, ok
}

func (s *SessionStore) All() []*app.EventSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*app.EventSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

func (s *SessionStore) DeleteIfEmpty(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[eventID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		session.Close()
		delete(s.sessions, eventID)
		_ = s.client.Del(context.Background(), s.key(eventID)).Err()
	}
}

func (s *SessionStore) key(eventID string) string {
	return "event:session:" + eventID
}
