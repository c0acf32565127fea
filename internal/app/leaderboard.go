package app

import "zone-competition-service/internal/domain"

// TopN returns the first n entries in their existing order. Entries arrive
// rank-ordered from the snapshot; view helpers never re-sort them, so podium
// and summary slices always agree with the authoritative ranking.
func TopN(entries []domain.LeaderboardEntry, n int) []domain.LeaderboardEntry {
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]domain.LeaderboardEntry, n)
	copy(out, entries[:n])
	return out
}

// MarkCurrentUser returns a copy of entries with IsCurrentUser set on the
// entry matching userID, for "you" highlighting in per-user payloads.
func MarkCurrentUser(entries []domain.LeaderboardEntry, userID string) []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	for i := range out {
		out[i].IsCurrentUser = out[i].UserID == userID
	}
	return out
}
