package domain

// UpdateKind discriminates the notifications delivered on a live update channel.
type UpdateKind string

const (
	// UpdateRound signals a round status change (activated or completed).
	UpdateRound UpdateKind = "round"
	// UpdateQuestionOpened signals a new active question; the payload is redacted.
	UpdateQuestionOpened UpdateKind = "questionOpened"
	// UpdateQuestionClosed reveals the correct option and locks submissions.
	UpdateQuestionClosed UpdateKind = "questionClosed"
	// UpdateTimeExpired fires exactly once when an open question's countdown hits zero.
	UpdateTimeExpired UpdateKind = "timeExpired"
	// UpdateLeaderboard carries a wholesale leaderboard snapshot.
	UpdateLeaderboard UpdateKind = "leaderboard"
	// UpdateViewers carries the current viewer count.
	UpdateViewers UpdateKind = "viewers"
	// UpdateBadge announces a badge award.
	UpdateBadge UpdateKind = "badge"
)

// Update is one typed notification pushed to session subscribers. Only the
// fields relevant to Kind are set.
type Update struct {
	Kind             UpdateKind   `json:"kind"`
	Round            *Round       `json:"round,omitempty"`
	Question         *Question    `json:"question,omitempty"`
	RemainingSeconds int          `json:"remainingSeconds,omitempty"`
	Leaderboard      *Leaderboard `json:"leaderboard,omitempty"`
	Viewers          int          `json:"viewers,omitempty"`
	Badge            *BadgeAward  `json:"badge,omitempty"`
}
