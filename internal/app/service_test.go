package app_test

import (
	"context"
	"testing"
	"time"

	"zone-competition-service/internal/app"
	"zone-competition-service/internal/domain"
	"zone-competition-service/internal/infra/memory"
)

func TestJoinAndScoring(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.Join(ctx, "event-1", "u1", "Alice", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := service.Join(ctx, "event-1", "u2", "Bob", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if _, err := service.ActivateRound("event-1", "round-1"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, _, err := service.OpenQuestion("event-1", "round-1", "q1"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	result, err := service.SubmitAnswer(ctx, "event-1", "u2", "q1", 1, 1100)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Accepted() || result.Leaderboard == nil {
		t.Fatalf("expected accepted result with leaderboard, got %+v", result)
	}
	lb := *result.Leaderboard
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].UserID != "u2" || lb.Entries[0].Score != 10 {
		t.Fatalf("expected Bob to lead with 10 points, got %+v", lb.Entries[0])
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.Join(ctx, "event-1", "u1", "Alice", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, "event-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := service.ActivateRound("event-1", "round-1"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	update := <-ch
	if update.Kind != domain.UpdateRound || update.Round == nil || update.Round.ID != "round-1" {
		t.Fatalf("expected round update, got %+v", update)
	}
}

func TestSubmitRequiresParticipant(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	_, err := service.SubmitAnswer(ctx, "event-unknown", "u1", "q1", 0, 0)
	if err != domain.ErrSessionNotFound {
		t.Fatalf("expected session error, got %v", err)
	}

	_, _ = service.Join(ctx, "event-1", "u1", "Alice", "")
	_, err = service.SubmitAnswer(ctx, "event-1", "u2", "q1", 0, 0)
	if err != domain.ErrParticipantNotFound {
		t.Fatalf("expected participant error, got %v", err)
	}
}

func TestJoinUnknownEvent(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.Join(ctx, "event-404", "u1", "Alice", ""); err != domain.ErrEventNotFound {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestRoundsWithoutSessionServesStoredContent(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	rounds, err := service.Rounds(ctx, "event-1")
	if err != nil {
		t.Fatalf("rounds failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	for _, r := range rounds {
		for _, q := range r.Questions {
			if q.CorrectOption != -1 {
				t.Fatalf("correct option leaked from stored content: %+v", q)
			}
		}
	}
}

func TestResyncRefreshesContent(t *testing.T) {
	ctx := context.Background()
	stub := &stubEvents{event: testEvent()}
	service := app.NewCompetitionService(memory.NewSessionStore(), stub, nil)

	if _, err := service.Join(ctx, "event-1", "u1", "Alice", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	stub.event.Rounds[0].Name = "Warmup v2"
	if err := service.Resync(ctx, "event-1"); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	rounds, err := service.Rounds(ctx, "event-1")
	if err != nil {
		t.Fatalf("rounds failed: %v", err)
	}
	if rounds[0].Name != "Warmup v2" {
		t.Fatalf("resync did not refresh content: %+v", rounds[0])
	}
}

func TestResyncBypassesContentCache(t *testing.T) {
	ctx := context.Background()
	contents := map[string]domain.Event{"event-1": testEvent()}
	events := memory.NewEventRepository(memory.NewStaticEventLoader(contents), time.Hour)
	service := app.NewCompetitionService(memory.NewSessionStore(), events, nil)

	if _, err := service.Join(ctx, "event-1", "u1", "Alice", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// The join primed the cache; the loader now serves newer content.
	refreshed := testEvent()
	refreshed.Rounds[0].Name = "Warmup v2"
	contents["event-1"] = refreshed

	if err := service.Resync(ctx, "event-1"); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	rounds, err := service.Rounds(ctx, "event-1")
	if err != nil {
		t.Fatalf("rounds failed: %v", err)
	}
	if rounds[0].Name != "Warmup v2" {
		t.Fatalf("resync served the cached copy: %+v", rounds[0])
	}
}

func TestActivateDueRounds(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)

	event := testEvent()
	event.Rounds[0].ScheduledStart = &past
	stub := &stubEvents{event: event}
	service := app.NewCompetitionService(memory.NewSessionStore(), stub, nil)

	if _, err := service.Join(ctx, "event-1", "u1", "Alice", ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	activated := service.ActivateDueRounds(now)
	if len(activated) != 1 || activated[0].ID != "round-1" {
		t.Fatalf("expected round-1 activated, got %+v", activated)
	}
	if activated[0].Status != domain.RoundActive {
		t.Fatalf("activated round status = %s", activated[0].Status)
	}

	// A second sweep finds nothing due while the round is live.
	if again := service.ActivateDueRounds(now); len(again) != 0 {
		t.Fatalf("sweep re-activated rounds: %+v", again)
	}
}

func TestViewerCountFallsBackToSession(t *testing.T) {
	ctx := context.Background()
	service := app.NewCompetitionService(memory.NewSessionStore(), &stubEvents{event: testEvent()}, nil)

	_, _ = service.Join(ctx, "event-1", "u1", "Alice", "")
	_, _ = service.Join(ctx, "event-1", "u2", "Bob", "")

	count, err := service.ViewerCount(ctx, "event-1")
	if err != nil {
		t.Fatalf("viewer count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 viewers, got %d", count)
	}
}

func TestLeaveDropsEmptySession(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	_, _ = service.Join(ctx, "event-1", "u1", "Alice", "")
	service.Leave(ctx, "event-1", "u1")

	if _, err := service.Leaderboard("event-1"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session dropped, got %v", err)
	}
}

type stubEvents struct {
	event domain.Event
}

func (s *stubEvents) GetEvent(_ context.Context, eventID string) (domain.Event, error) {
	if eventID != s.event.ID {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return s.event, nil
}

func (s *stubEvents) Invalidate(context.Context, string) error { return nil }

func newTestService() *app.CompetitionService {
	sessionStore := memory.NewSessionStore()
	events := memory.NewEventRepository(memory.NewStaticEventLoader(map[string]domain.Event{
		"event-1": testEvent(),
	}), 5*time.Minute)
	presence := memory.NewPresenceStore(time.Minute)
	return app.NewCompetitionService(sessionStore, events, presence)
}
