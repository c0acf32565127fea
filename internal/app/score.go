package app

import "zone-competition-service/internal/domain"

// ApplyResponseResult folds an accepted response into a score and returns the
// next score. Rank is deliberately untouched: rank requires comparing against
// every other participant and is only updated by a leaderboard refresh.
func ApplyResponseResult(resp domain.Response, prev domain.Score) domain.Score {
	next := prev
	next.TotalScore += resp.PointsEarned
	next.TotalAnswers++
	if resp.Correct {
		next.CorrectAnswers++
		next.CurrentStreak = prev.CurrentStreak + 1
	} else {
		next.CurrentStreak = 0
	}
	return next
}

// ApplyLeaderboardRefresh reconciles a local score with an authoritative
// leaderboard snapshot. When the user appears in the snapshot the local score
// is overwritten wholesale; the refresh always wins over any optimistic local
// delta. When the user is absent the rank drops to 0 (unranked) and the rest
// of the score is kept.
func ApplyLeaderboardRefresh(entries []domain.LeaderboardEntry, userID string, prev domain.Score) domain.Score {
	for _, e := range entries {
		if e.UserID == userID {
			return domain.Score{
				TotalScore:     e.Score,
				CorrectAnswers: e.CorrectAnswers,
				TotalAnswers:   e.TotalAnswers,
				CurrentStreak:  e.Streak,
				Rank:           e.Rank,
			}
		}
	}
	next := prev
	next.Rank = 0
	return next
}
