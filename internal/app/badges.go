package app

import "zone-competition-service/internal/domain"

// DefaultBadges are the built-in celebration awards, evaluated after every
// accepted response. Each badge is granted at most once per user per event.
var DefaultBadges = []domain.Badge{
	{ID: "first-correct", Name: "On the Board", MinCorrect: 1},
	{ID: "hot-streak", Name: "Hot Streak", MinStreak: 3},
	{ID: "unstoppable", Name: "Unstoppable", MinStreak: 5},
	{ID: "sharpshooter", Name: "Sharpshooter", MinCorrect: 10},
	{ID: "century", Name: "Century Club", MinScore: 100},
}

// earnedBadges returns the badges the score currently qualifies for.
// Zero-valued thresholds on a rule are ignored.
func earnedBadges(rules []domain.Badge, score domain.Score) []domain.Badge {
	var out []domain.Badge
	for _, b := range rules {
		if b.MinStreak > 0 && score.CurrentStreak < b.MinStreak {
			continue
		}
		if b.MinScore > 0 && score.TotalScore < b.MinScore {
			continue
		}
		if b.MinCorrect > 0 && score.CorrectAnswers < b.MinCorrect {
			continue
		}
		out = append(out, b)
	}
	return out
}
