package app

import (
	"time"

	"zone-competition-service/internal/domain"
)

// SelectActiveRound returns the first round whose status is active, or false
// when no round is live. It is a pure function over the round list.
func SelectActiveRound(rounds []domain.Round) (domain.Round, bool) {
	for _, r := range rounds {
		if r.Status == domain.RoundActive {
			return r, true
		}
	}
	return domain.Round{}, false
}

// NextDueRound returns the earliest upcoming round whose scheduled start has
// passed. Rounds without a schedule are never auto-activated.
func NextDueRound(rounds []domain.Round, now time.Time) (domain.Round, bool) {
	var due domain.Round
	found := false
	for _, r := range rounds {
		if r.Status != domain.RoundUpcoming || r.ScheduledStart == nil {
			continue
		}
		if r.ScheduledStart.After(now) {
			continue
		}
		if !found || r.ScheduledStart.Before(*due.ScheduledStart) {
			due = r
			found = true
		}
	}
	return due, found
}
