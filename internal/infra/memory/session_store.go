package memory

import (
	"sync"

	"zone-competition-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.EventSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
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

// DeleteIfEmpty closes and drops the session once its last participant left.
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
	}
}
