package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"zone-competition-service/internal/domain"
)

// EventSession owns all live competition state for one event: the round
// registry, the active question window, per-question response tracking,
// per-user scores and badges, and the subscriber fan-out. Every mutation is
// funnelled through its methods under one lock, so countdown ticks, lifecycle
// operations and submissions never race each other.
type EventSession struct {
	id        string
	createdAt time.Time
	now       func() time.Time
	tick      time.Duration

	mu           sync.RWMutex
	title        string
	rounds       []domain.Round
	window       *questionWindow
	responses    map[string]map[string]domain.Response
	participants map[string]*domain.Participant
	badges       []domain.Badge
	awarded      map[string]map[string]struct{}
	subscribers  map[chan domain.Update]struct{}
	lastSync     time.Time
	closed       bool
	closeOnce    sync.Once
}

// questionWindow tracks the question currently shown to participants. The
// countdown is nil for untimed questions; stopTick ends the ticker goroutine
// and is closed exactly once.
type questionWindow struct {
	roundID    string
	questionID string
	countdown  *Countdown
	stopTick   chan struct{}
}

// NewSession creates an empty session for an event, ticking in real time.
func NewSession(id string) *EventSession {
	return NewSessionWithClock(id, time.Now, time.Second)
}

// NewSessionWithClock allows deterministic timestamps and tick rates in tests.
func NewSessionWithClock(id string, now func() time.Time, tick time.Duration) *EventSession {
	if tick <= 0 {
		tick = time.Second
	}
	return &EventSession{
		id:           id,
		createdAt:    now(),
		now:          now,
		tick:         tick,
		responses:    make(map[string]map[string]domain.Response),
		participants: make(map[string]*domain.Participant),
		badges:       DefaultBadges,
		awarded:      make(map[string]map[string]struct{}),
		subscribers:  make(map[chan domain.Update]struct{}),
		lastSync:     now(),
	}
}

// ID returns the event this session belongs to.
func (s *EventSession) ID() string { return s.id }

// SyncContent merges event content into the session. New rounds and questions
// are adopted; for known ones the definition fields refresh while live status
// and timestamps win, so a refresh never regresses the state machine.
func (s *EventSession) SyncContent(content domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if content.Title != "" {
		s.title = content.Title
	}
	for _, cr := range content.Rounds {
		idx := s.roundIndexLocked(cr.ID)
		if idx < 0 {
			nr := cr
			nr.EventID = s.id
			if nr.Status == "" {
				nr.Status = domain.RoundUpcoming
			}
			if nr.Status == domain.RoundActive {
				if _, ok := SelectActiveRound(s.rounds); ok {
					nr.Status = domain.RoundUpcoming
				}
			}
			nr.Questions = make([]domain.Question, len(cr.Questions))
			copy(nr.Questions, cr.Questions)
			for i := range nr.Questions {
				nr.Questions[i].RoundID = nr.ID
				if nr.Questions[i].Status == "" {
					nr.Questions[i].Status = domain.QuestionPending
				}
			}
			s.rounds = append(s.rounds, nr)
			continue
		}
		r := &s.rounds[idx]
		r.Name = cr.Name
		r.Ordinal = cr.Ordinal
		r.ScheduledStart = cr.ScheduledStart
		for _, cq := range cr.Questions {
			qi := questionIndex(r.Questions, cq.ID)
			if qi < 0 {
				nq := cq
				nq.RoundID = r.ID
				if nq.Status == "" {
					nq.Status = domain.QuestionPending
				}
				r.Questions = append(r.Questions, nq)
				continue
			}
			q := &r.Questions[qi]
			q.Prompt = cq.Prompt
			q.Ordinal = cq.Ordinal
			if q.Status == domain.QuestionPending {
				q.Options = cq.Options
				q.CorrectOption = cq.CorrectOption
				q.Points = cq.Points
				q.TimeLimitSec = cq.TimeLimitSec
			}
		}
		sort.Slice(r.Questions, func(i, j int) bool { return r.Questions[i].Ordinal < r.Questions[j].Ordinal })
	}
	sort.Slice(s.rounds, func(i, j int) bool { return s.rounds[i].Ordinal < s.rounds[j].Ordinal })
	s.lastSync = s.now()
}

// StaleFor reports whether the last content sync is older than threshold.
func (s *EventSession) StaleFor(threshold time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.lastSync) > threshold
}

// Join registers or refreshes a participant and returns the full session
// snapshot personalized for them.
func (s *EventSession) Join(userID, displayName, avatarURL string) domain.EventState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if p, ok := s.participants[userID]; ok {
		p.DisplayName = displayName
		if avatarURL != "" {
			p.AvatarURL = avatarURL
		}
		p.LastUpdated = now
	} else {
		s.participants[userID] = &domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
			JoinedAt:    now,
			LastUpdated: now,
		}
	}
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateViewers, Viewers: len(s.participants)})
	s.broadcastLocked()
	return s.snapshotLocked(userID)
}

// Leave removes a participant and returns the refreshed leaderboard.
func (s *EventSession) Leave(userID string) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, userID)
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateViewers, Viewers: len(s.participants)})
	return s.broadcastLocked()
}

// IsEmpty reports whether the session has no participants.
func (s *EventSession) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

// Rounds returns redacted copies of the round registry in ordinal order.
func (s *EventSession) Rounds() []domain.Round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Round, len(s.rounds))
	for i, r := range s.rounds {
		out[i] = redactRound(r)
	}
	return out
}

// ActiveRound returns the single live round, if any.
func (s *EventSession) ActiveRound() (domain.Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := SelectActiveRound(s.rounds)
	if !ok {
		return domain.Round{}, false
	}
	return redactRound(r), true
}

// ActivateRound makes roundID the event's live round. Activating the already
// active round is a no-op; a second concurrent active round is refused so the
// one-active-round invariant holds.
func (s *EventSession) ActivateRound(roundID string) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Round{}, domain.ErrSessionClosed
	}
	idx := s.roundIndexLocked(roundID)
	if idx < 0 {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	switch s.rounds[idx].Status {
	case domain.RoundActive:
		return redactRound(s.rounds[idx]), nil
	case domain.RoundCompleted:
		return domain.Round{}, domain.ErrRoundCompleted
	}
	if cur, ok := SelectActiveRound(s.rounds); ok && cur.ID != roundID {
		return domain.Round{}, domain.ErrRoundAlreadyActive
	}
	return s.activateLocked(idx), nil
}

// ActivateDueRound activates the earliest scheduled round that is due, unless
// a round is already live. It reports whether an activation happened.
func (s *EventSession) ActivateDueRound(now time.Time) (domain.Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Round{}, false
	}
	if _, ok := SelectActiveRound(s.rounds); ok {
		return domain.Round{}, false
	}
	due, ok := NextDueRound(s.rounds, now)
	if !ok {
		return domain.Round{}, false
	}
	idx := s.roundIndexLocked(due.ID)
	if idx < 0 {
		return domain.Round{}, false
	}
	return s.activateLocked(idx), true
}

func (s *EventSession) activateLocked(idx int) domain.Round {
	s.clearWindowLocked()
	s.rounds[idx].Status = domain.RoundActive
	round := redactRound(s.rounds[idx])
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateRound, Round: &round})
	return round
}

// CompleteRound finishes the live round and clears the question window.
func (s *EventSession) CompleteRound(roundID string) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Round{}, domain.ErrSessionClosed
	}
	idx := s.roundIndexLocked(roundID)
	if idx < 0 {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	if s.rounds[idx].Status != domain.RoundActive {
		return domain.Round{}, domain.ErrRoundNotActive
	}
	s.clearWindowLocked()
	s.rounds[idx].Status = domain.RoundCompleted
	round := redactRound(s.rounds[idx])
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateRound, Round: &round})
	return round, nil
}

// OpenQuestion makes questionID the active question of the live round and
// announces it redacted, together with the countdown seconds. The response
// map for the question is initialized on first open; recorded responses
// survive a reopen so submission stays create-once per user and question.
// For timed questions the countdown starts at the time limit minus the
// seconds already elapsed since the first open, clamped at zero.
func (s *EventSession) OpenQuestion(roundID, questionID string) (domain.Question, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Question{}, 0, domain.ErrSessionClosed
	}
	ri := s.roundIndexLocked(roundID)
	if ri < 0 {
		return domain.Question{}, 0, domain.ErrRoundNotFound
	}
	round := &s.rounds[ri]
	if round.Status != domain.RoundActive {
		return domain.Question{}, 0, domain.ErrRoundNotActive
	}
	qi := questionIndex(round.Questions, questionID)
	if qi < 0 {
		return domain.Question{}, 0, domain.ErrQuestionNotFound
	}
	q := &round.Questions[qi]
	if q.Status == domain.QuestionClosed {
		return domain.Question{}, 0, domain.ErrQuestionAlreadyClosed
	}

	now := s.now()
	if q.OpenedAt.IsZero() {
		q.OpenedAt = now
	}
	q.Status = domain.QuestionOpen
	if _, ok := s.responses[q.ID]; !ok {
		s.responses[q.ID] = make(map[string]domain.Response)
	}

	s.clearWindowLocked()
	w := &questionWindow{roundID: roundID, questionID: q.ID}
	remaining := 0
	if q.HasTimeLimit() {
		remaining = q.TimeLimitSec - int(now.Sub(q.OpenedAt)/time.Second)
		if remaining < 0 {
			remaining = 0
		}
		w.countdown = NewCountdown(remaining)
		w.stopTick = make(chan struct{})
		go s.runCountdown(w, w.stopTick)
	}
	s.window = w

	redacted := q.Redacted()
	s.broadcastUpdateLocked(domain.Update{
		Kind:             domain.UpdateQuestionOpened,
		Question:         &redacted,
		RemainingSeconds: remaining,
	})
	return redacted, remaining, nil
}

// CloseQuestion locks the question against further submissions and reveals
// the correct option. The window keeps showing the closed question until the
// next open or round completion.
func (s *EventSession) CloseQuestion(questionID string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Question{}, domain.ErrSessionClosed
	}
	q := s.questionLocked(questionID)
	if q == nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if q.Status != domain.QuestionOpen {
		return domain.Question{}, domain.ErrQuestionNotOpen
	}
	closedAt := s.now()
	q.Status = domain.QuestionClosed
	q.ClosedAt = &closedAt
	if s.window != nil && s.window.questionID == questionID {
		s.stopTickLocked()
	}
	revealed := *q
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateQuestionClosed, Question: &revealed})
	return revealed, nil
}

// ActiveQuestion returns the redacted open question and its remaining
// countdown seconds, or false when no question is accepting answers.
func (s *EventSession) ActiveQuestion() (domain.Question, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.window == nil {
		return domain.Question{}, 0, false
	}
	q := s.questionLocked(s.window.questionID)
	if q == nil || q.Status != domain.QuestionOpen {
		return domain.Question{}, 0, false
	}
	remaining := 0
	if s.window.countdown != nil {
		remaining = s.window.countdown.Remaining()
	}
	return q.Redacted(), remaining, true
}

// Tick advances the active question countdown by one second. It reports the
// seconds left and whether expiry fired on this tick; the expiry notification
// is pushed to subscribers exactly once. Ticks are no-ops unless a timed
// question is currently open.
func (s *EventSession) Tick() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked(s.window)
}

// tickWindow advances the countdown only while w is still the current window,
// so a tick in flight from a replaced window cannot touch its successor.
func (s *EventSession) tickWindow(w *questionWindow) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window != w {
		return 0, false
	}
	return s.tickLocked(w)
}

func (s *EventSession) tickLocked(w *questionWindow) (int, bool) {
	if s.closed || w == nil || w.countdown == nil {
		return 0, false
	}
	q := s.questionLocked(w.questionID)
	if q == nil || q.Status != domain.QuestionOpen {
		return 0, false
	}
	remaining, fired := w.countdown.Tick()
	if !fired {
		return remaining, false
	}
	expired := q.Redacted()
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateTimeExpired, Question: &expired})
	return 0, true
}

func (s *EventSession) runCountdown(w *questionWindow, stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, fired := s.tickWindow(w); fired {
				return
			}
		}
	}
}

// Submit records userID's answer to questionID. The question status is
// re-checked under the session lock immediately before accepting, so a stale
// client cannot slip an answer past a close. Expected rejections come back as
// verdicts; only boundary misuse is an error.
func (s *EventSession) Submit(userID, questionID string, optionIndex int, responseTimeMs int64) (domain.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.SubmitResult{}, domain.ErrSessionClosed
	}
	p, ok := s.participants[userID]
	if !ok {
		return domain.SubmitResult{}, domain.ErrParticipantNotFound
	}

	q := s.questionLocked(questionID)
	if q != nil && q.Status == domain.QuestionClosed {
		return domain.SubmitResult{Verdict: domain.VerdictQuestionClosed}, nil
	}
	if q == nil || s.window == nil || s.window.questionID != questionID || q.Status != domain.QuestionOpen {
		return domain.SubmitResult{Verdict: domain.VerdictQuestionMismatch}, nil
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return domain.SubmitResult{Verdict: domain.VerdictInvalidOption}, nil
	}
	if _, dup := s.responses[questionID][userID]; dup {
		return domain.SubmitResult{Verdict: domain.VerdictDuplicate}, nil
	}

	if responseTimeMs < 0 {
		responseTimeMs = 0
	}
	points := q.Points
	if points == 0 {
		points = 1
	}
	correct := optionIndex == q.CorrectOption
	earned := 0
	if correct {
		earned = points
	}
	resp := domain.Response{
		ID:             uuid.NewString(),
		QuestionID:     questionID,
		UserID:         userID,
		OptionIndex:    optionIndex,
		ResponseTimeMs: responseTimeMs,
		Correct:        correct,
		PointsEarned:   earned,
		SubmittedAt:    s.now(),
	}
	if s.responses[questionID] == nil {
		s.responses[questionID] = make(map[string]domain.Response)
	}
	s.responses[questionID][userID] = resp

	p.Score = ApplyResponseResult(resp, p.Score)
	p.LastUpdated = resp.SubmittedAt
	outcome := &domain.AnswerOutcome{
		QuestionID:   questionID,
		Correct:      correct,
		PointsEarned: earned,
		NewStreak:    p.Score.CurrentStreak,
		TotalScore:   p.Score.TotalScore,
	}
	s.awardBadgesLocked(userID, p.Score)
	lb := s.broadcastLocked()
	return domain.SubmitResult{
		Verdict:     domain.VerdictAccepted,
		Response:    &resp,
		Outcome:     outcome,
		Leaderboard: &lb,
	}, nil
}

// Response returns the recorded response for (userID, questionID), if any.
func (s *EventSession) Response(userID, questionID string) (domain.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[questionID][userID]
	return resp, ok
}

// Leaderboard returns the current ranked snapshot without broadcasting it.
func (s *EventSession) Leaderboard() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leaderboardLocked()
}

// Snapshot builds the serializable session state personalized for userID.
func (s *EventSession) Snapshot(userID string) domain.EventState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(userID)
}

// Subscribe returns a channel of live updates plus a cancel function. The
// caller must invoke cancel on teardown to release the subscription.
func (s *EventSession) Subscribe() (<-chan domain.Update, func()) {
	ch := make(chan domain.Update, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	lb := s.leaderboardLocked()
	// The channel is fresh and buffered, so seeding it under the lock cannot block.
	ch <- domain.Update{Kind: domain.UpdateLeaderboard, Leaderboard: &lb}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close tears the session down exactly once: the countdown stops and every
// subscriber channel is closed. Further lifecycle calls fail with
// ErrSessionClosed.
func (s *EventSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		s.clearWindowLocked()
		for ch := range s.subscribers {
			delete(s.subscribers, ch)
			close(ch)
		}
	})
}

func (s *EventSession) awardBadgesLocked(userID string, score domain.Score) {
	for _, b := range earnedBadges(s.badges, score) {
		if s.awarded[userID] == nil {
			s.awarded[userID] = make(map[string]struct{})
		}
		if _, ok := s.awarded[userID][b.ID]; ok {
			continue
		}
		s.awarded[userID][b.ID] = struct{}{}
		award := domain.BadgeAward{UserID: userID, Badge: b, AwardedAt: s.now()}
		s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateBadge, Badge: &award})
	}
}

// broadcastLocked recomputes the leaderboard, reconciles every participant's
// score with it (the refresh is authoritative, including ranks) and fans the
// snapshot out to subscribers.
func (s *EventSession) broadcastLocked() domain.Leaderboard {
	lb := s.leaderboardLocked()
	for _, p := range s.participants {
		p.Score = ApplyLeaderboardRefresh(lb.Entries, p.UserID, p.Score)
	}
	s.broadcastUpdateLocked(domain.Update{Kind: domain.UpdateLeaderboard, Leaderboard: &lb})
	return lb
}

func (s *EventSession) broadcastUpdateLocked(u domain.Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Slow subscribers lose their oldest update rather than blocking the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

func (s *EventSession) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	for _, p := range s.participants {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			AvatarURL:      p.AvatarURL,
			Score:          p.Score.TotalScore,
			CorrectAnswers: p.Score.CorrectAnswers,
			TotalAnswers:   p.Score.TotalAnswers,
			Streak:         p.Score.CurrentStreak,
		})
	}

	// Order by score desc; ties go to whoever reached the score earlier, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := s.participants[entries[i].UserID]
		pj := s.participants[entries[j].UserID]
		if pi != nil && pj != nil && !pi.LastUpdated.Equal(pj.LastUpdated) {
			return pi.LastUpdated.Before(pj.LastUpdated)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{
		EventID:   s.id,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}

func (s *EventSession) snapshotLocked(userID string) domain.EventState {
	state := domain.EventState{
		EventID:   s.id,
		Title:     s.title,
		UpdatedAt: s.now(),
	}
	state.Rounds = make([]domain.Round, len(s.rounds))
	for i, r := range s.rounds {
		state.Rounds[i] = redactRound(r)
	}
	if r, ok := SelectActiveRound(s.rounds); ok {
		rr := redactRound(r)
		state.ActiveRound = &rr
	}
	if s.window != nil {
		if q := s.questionLocked(s.window.questionID); q != nil {
			qq := q.Redacted()
			state.ActiveQuestion = &qq
			if s.window.countdown != nil && q.Status == domain.QuestionOpen {
				state.RemainingSeconds = s.window.countdown.Remaining()
			}
		}
	}
	lb := s.leaderboardLocked()
	lb.Entries = MarkCurrentUser(lb.Entries, userID)
	state.Leaderboard = lb
	state.Viewers = len(s.participants)
	if p, ok := s.participants[userID]; ok {
		score := p.Score
		state.You = &score
	}
	return state
}

func (s *EventSession) stopTickLocked() {
	if s.window != nil && s.window.stopTick != nil {
		close(s.window.stopTick)
		s.window.stopTick = nil
	}
}

func (s *EventSession) clearWindowLocked() {
	s.stopTickLocked()
	s.window = nil
}

func (s *EventSession) roundIndexLocked(roundID string) int {
	for i := range s.rounds {
		if s.rounds[i].ID == roundID {
			return i
		}
	}
	return -1
}

func (s *EventSession) questionLocked(questionID string) *domain.Question {
	for i := range s.rounds {
		for j := range s.rounds[i].Questions {
			if s.rounds[i].Questions[j].ID == questionID {
				return &s.rounds[i].Questions[j]
			}
		}
	}
	return nil
}

func questionIndex(questions []domain.Question, questionID string) int {
	for i := range questions {
		if questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

func redactRound(r domain.Round) domain.Round {
	out := r
	out.Questions = make([]domain.Question, len(r.Questions))
	for i, q := range r.Questions {
		out.Questions[i] = q.Redacted()
	}
	return out
}
