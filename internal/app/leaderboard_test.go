package app_test

import (
	"testing"

	"zone-competition-service/internal/app"
	"zone-competition-service/internal/domain"
)

func TestTopNPreservesOrder(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		{UserID: "u1", Rank: 1, Score: 30},
		{UserID: "u2", Rank: 2, Score: 20},
		{UserID: "u3", Rank: 3, Score: 10},
	}

	top := app.TopN(entries, 2)
	if len(top) != 2 || top[0].UserID != "u1" || top[1].UserID != "u2" {
		t.Fatalf("top 2 = %+v, want u1 then u2", top)
	}
}

func TestTopNClampsBounds(t *testing.T) {
	entries := []domain.LeaderboardEntry{{UserID: "u1"}}

	if got := app.TopN(entries, 5); len(got) != 1 {
		t.Fatalf("expected clamp to list length, got %d entries", len(got))
	}
	if got := app.TopN(entries, -1); len(got) != 0 {
		t.Fatalf("expected empty slice for negative n, got %d entries", len(got))
	}
	if got := app.TopN(nil, 3); len(got) != 0 {
		t.Fatalf("expected empty slice for nil entries, got %d entries", len(got))
	}
}

func TestMarkCurrentUser(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		{UserID: "u1"},
		{UserID: "u2"},
	}

	marked := app.MarkCurrentUser(entries, "u2")
	if marked[0].IsCurrentUser || !marked[1].IsCurrentUser {
		t.Fatalf("marking wrong rows: %+v", marked)
	}
	// Input must stay untouched; payload personalization works on copies.
	if entries[1].IsCurrentUser {
		t.Fatalf("input slice mutated")
	}
}
