package app_test

import (
	"testing"
	"time"

	"zone-competition-service/internal/app"
	"zone-competition-service/internal/domain"
)

func TestSelectActiveRound(t *testing.T) {
	rounds := []domain.Round{
		{ID: "r1", Status: domain.RoundCompleted},
		{ID: "r2", Status: domain.RoundActive},
		{ID: "r3", Status: domain.RoundUpcoming},
	}

	r, ok := app.SelectActiveRound(rounds)
	if !ok || r.ID != "r2" {
		t.Fatalf("active round = (%v, %v), want r2", r.ID, ok)
	}
}

func TestSelectActiveRoundNone(t *testing.T) {
	rounds := []domain.Round{
		{ID: "r1", Status: domain.RoundCompleted},
		{ID: "r2", Status: domain.RoundUpcoming},
	}

	if _, ok := app.SelectActiveRound(rounds); ok {
		t.Fatalf("expected no active round")
	}
	if _, ok := app.SelectActiveRound(nil); ok {
		t.Fatalf("expected no active round in empty list")
	}
}

func TestNextDueRound(t *testing.T) {
	now := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	early := now.Add(-10 * time.Minute)
	late := now.Add(-1 * time.Minute)
	future := now.Add(30 * time.Minute)

	rounds := []domain.Round{
		{ID: "r1", Status: domain.RoundCompleted, ScheduledStart: &early},
		{ID: "r2", Status: domain.RoundUpcoming, ScheduledStart: &late},
		{ID: "r3", Status: domain.RoundUpcoming, ScheduledStart: &early},
		{ID: "r4", Status: domain.RoundUpcoming, ScheduledStart: &future},
		{ID: "r5", Status: domain.RoundUpcoming},
	}

	due, ok := app.NextDueRound(rounds, now)
	if !ok || due.ID != "r3" {
		t.Fatalf("due round = (%v, %v), want earliest overdue r3", due.ID, ok)
	}
}

func TestNextDueRoundSkipsUnscheduled(t *testing.T) {
	now := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	rounds := []domain.Round{
		{ID: "r1", Status: domain.RoundUpcoming},
	}

	if _, ok := app.NextDueRound(rounds, now); ok {
		t.Fatalf("unscheduled rounds must never auto-activate")
	}
}
