package app

import (
	"context"
	"time"

	"zone-competition-service/internal/domain"
)

// SessionRepository hands out live sessions keyed by event ID.
type SessionRepository interface {
	GetOrCreate(eventID string) *EventSession
	Get(eventID string) (*EventSession, bool)
	All() []*EventSession
	DeleteIfEmpty(eventID string)
}

// EventRepository loads event content (rounds and questions) by event ID.
// Cache-backed implementations drop their copy on Invalidate so the next
// read reaches the backing store.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	Invalidate(ctx context.Context, eventID string) error
}

// PresenceStore tracks which users are currently watching an event.
type PresenceStore interface {
	Heartbeat(ctx context.Context, eventID, userID string) error
	Count(ctx context.Context, eventID string) (int, error)
}

// CompetitionService coordinates event content, live sessions and presence.
// It is safe for concurrent use.
type CompetitionService struct {
	sessions SessionRepository
	events   EventRepository
	presence PresenceStore
}

func NewCompetitionService(sessions SessionRepository, events EventRepository, presence PresenceStore) *CompetitionService {
	return &CompetitionService{sessions: sessions, events: events, presence: presence}
}

// Join loads the event content, syncs it into the session, registers the
// participant and returns their personalized snapshot. Unknown events fail
// with domain.ErrEventNotFound before any session is created.
func (s *CompetitionService) Join(ctx context.Context, eventID, userID, displayName, avatarURL string) (domain.EventState, error) {
	content, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.EventState{}, err
	}
	session := s.sessions.GetOrCreate(eventID)
	session.SyncContent(content)
	state := session.Join(userID, displayName, avatarURL)
	if s.presence != nil {
		_ = s.presence.Heartbeat(ctx, eventID, userID)
	}
	return state, nil
}

// Leave removes the participant and drops the session once nobody is left.
func (s *CompetitionService) Leave(_ context.Context, eventID, userID string) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return
	}
	session.Leave(userID)
	s.sessions.DeleteIfEmpty(eventID)
}

// Rounds returns the event's rounds in ordinal order. A live session is
// authoritative; without one the stored content is served read-only.
func (s *CompetitionService) Rounds(ctx context.Context, eventID string) ([]domain.Round, error) {
	if session, ok := s.sessions.Get(eventID); ok {
		return session.Rounds(), nil
	}
	content, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rounds := make([]domain.Round, len(content.Rounds))
	for i, r := range content.Rounds {
		rounds[i] = redactRound(r)
	}
	return rounds, nil
}

// ActiveRound reports the single live round of the event, if any.
func (s *CompetitionService) ActiveRound(ctx context.Context, eventID string) (domain.Round, bool, error) {
	if session, ok := s.sessions.Get(eventID); ok {
		r, ok := session.ActiveRound()
		return r, ok, nil
	}
	rounds, err := s.Rounds(ctx, eventID)
	if err != nil {
		return domain.Round{}, false, err
	}
	r, ok := SelectActiveRound(rounds)
	return r, ok, nil
}

// ActiveQuestion reports the open question and its remaining seconds.
func (s *CompetitionService) ActiveQuestion(eventID string) (domain.Question, int, bool, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Question{}, 0, false, domain.ErrSessionNotFound
	}
	q, remaining, ok := session.ActiveQuestion()
	return q, remaining, ok, nil
}

// SubmitAnswer records a participant's answer and refreshes their presence.
func (s *CompetitionService) SubmitAnswer(ctx context.Context, eventID, userID, questionID string, optionIndex int, responseTimeMs int64) (domain.SubmitResult, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.SubmitResult{}, domain.ErrSessionNotFound
	}
	result, err := session.Submit(userID, questionID, optionIndex, responseTimeMs)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if s.presence != nil {
		_ = s.presence.Heartbeat(ctx, eventID, userID)
	}
	return result, nil
}

// Leaderboard returns the current ranked standings for the event.
func (s *CompetitionService) Leaderboard(eventID string) (domain.Leaderboard, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	return session.Leaderboard(), nil
}

// Snapshot returns the full session state personalized for userID.
func (s *CompetitionService) Snapshot(eventID, userID string) (domain.EventState, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.EventState{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(userID), nil
}

// Subscribe attaches to the event's update stream.
func (s *CompetitionService) Subscribe(_ context.Context, eventID string) (<-chan domain.Update, func(), error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	updates, cancel := session.Subscribe()
	return updates, cancel, nil
}

// ActivateRound starts a round for the event.
func (s *CompetitionService) ActivateRound(eventID, roundID string) (domain.Round, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Round{}, domain.ErrSessionNotFound
	}
	return session.ActivateRound(roundID)
}

// CompleteRound finishes a round for the event.
func (s *CompetitionService) CompleteRound(eventID, roundID string) (domain.Round, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Round{}, domain.ErrSessionNotFound
	}
	return session.CompleteRound(roundID)
}

// OpenQuestion opens a question in the event's active round.
func (s *CompetitionService) OpenQuestion(eventID, roundID, questionID string) (domain.Question, int, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Question{}, 0, domain.ErrSessionNotFound
	}
	return session.OpenQuestion(roundID, questionID)
}

// CloseQuestion locks a question against further answers.
func (s *CompetitionService) CloseQuestion(eventID, questionID string) (domain.Question, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Question{}, domain.ErrSessionNotFound
	}
	return session.CloseQuestion(questionID)
}

// Resync drops any cached content for the event, re-fetches it from the
// repository and merges the fresh copy into the session.
func (s *CompetitionService) Resync(ctx context.Context, eventID string) error {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := s.events.Invalidate(ctx, eventID); err != nil {
		return err
	}
	content, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	session.SyncContent(content)
	return nil
}

// ActivateDueRounds sweeps all live sessions and activates rounds whose
// scheduled start has passed. It returns the rounds it activated.
func (s *CompetitionService) ActivateDueRounds(now time.Time) []domain.Round {
	var activated []domain.Round
	for _, session := range s.sessions.All() {
		if r, ok := session.ActivateDueRound(now); ok {
			activated = append(activated, r)
		}
	}
	return activated
}

// Heartbeat marks userID as still watching eventID.
func (s *CompetitionService) Heartbeat(ctx context.Context, eventID, userID string) error {
	if s.presence == nil {
		return nil
	}
	return s.presence.Heartbeat(ctx, eventID, userID)
}

// ViewerCount reports how many users are currently watching the event. It
// prefers the presence store and falls back to the session participant count.
func (s *CompetitionService) ViewerCount(ctx context.Context, eventID string) (int, error) {
	if s.presence != nil {
		return s.presence.Count(ctx, eventID)
	}
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return 0, nil
	}
	return session.Snapshot("").Viewers, nil
}
