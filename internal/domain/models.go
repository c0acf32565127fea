package domain

import "time"

// RoundStatus is the lifecycle state of a competition round.
type RoundStatus string

const (
	RoundUpcoming  RoundStatus = "upcoming"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// QuestionStatus is the lifecycle state of a question within a round.
type QuestionStatus string

const (
	// QuestionPending means the question has not been opened for answers yet.
	QuestionPending QuestionStatus = "pending"
	// QuestionOpen means the question is accepting answers.
	QuestionOpen QuestionStatus = "active"
	// QuestionClosed means answers are rejected and the correct option is revealed.
	QuestionClosed QuestionStatus = "closed"
)

// Event is the competition content for one live event: ordered rounds of questions.
type Event struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Rounds []Round `json:"rounds"`
}

// Round is a scored phase of a competition containing an ordered sequence of questions.
// At most one round per event is active at any time.
type Round struct {
	ID             string      `json:"id"`
	EventID        string      `json:"eventId"`
	Name           string      `json:"name"`
	Ordinal        int         `json:"ordinal"`
	Status         RoundStatus `json:"status"`
	ScheduledStart *time.Time  `json:"scheduledStart,omitempty"`
	Questions      []Question  `json:"questions"`
}

// QuestionCount reports the number of questions in the round.
func (r Round) QuestionCount() int { return len(r.Questions) }

// CompletedQuestions reports how many of the round's questions have closed.
func (r Round) CompletedQuestions() int {
	n := 0
	for _, q := range r.Questions {
		if q.Status == QuestionClosed {
			n++
		}
	}
	return n
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string `json:"id"`
	RoundID string `json:"roundId"`
	Ordinal int    `json:"ordinal"`
	Prompt  string `json:"prompt"`
	// Options holds between 2 and 6 answer texts; CorrectOption indexes into it.
	Options       []string       `json:"options"`
	CorrectOption int            `json:"correctOption"`
	Points        int            `json:"points"` // defaults to 1 if zero
	TimeLimitSec  int            `json:"timeLimitSec,omitempty"`
	Status        QuestionStatus `json:"status"`
	OpenedAt      time.Time      `json:"openedAt,omitempty"`
	ClosedAt      *time.Time     `json:"closedAt,omitempty"`
}

// HasTimeLimit reports whether the question runs a countdown while open.
func (q Question) HasTimeLimit() bool { return q.TimeLimitSec > 0 }

// Redacted returns a copy safe for client payloads: the correct option stays
// hidden until the question closes.
func (q Question) Redacted() Question {
	if q.Status == QuestionClosed {
		return q
	}
	q.CorrectOption = -1
	return q
}

// Response records one user's answer to one question. Submission is a
// create-once operation: at most one response exists per (user, question).
type Response struct {
	ID             string    `json:"id"`
	QuestionID     string    `json:"questionId"`
	UserID         string    `json:"userId"`
	OptionIndex    int       `json:"optionIndex"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Correct        bool      `json:"correct"`
	PointsEarned   int       `json:"pointsEarned"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Score is a user's aggregate standing within one event. Rank is 1-based;
// 0 means unranked. It is mutated only by accepted submissions or by an
// authoritative leaderboard refresh.
type Score struct {
	TotalScore     int `json:"totalScore"`
	CorrectAnswers int `json:"correctAnswers"`
	TotalAnswers   int `json:"totalAnswers"`
	CurrentStreak  int `json:"currentStreak"`
	Rank           int `json:"rank"`
}

// Participant represents a joined viewer and their accumulated score.
type Participant struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Score       Score
	JoinedAt    time.Time
	LastUpdated time.Time
}

// LeaderboardEntry is a snapshot-friendly view of a participant's standing.
type LeaderboardEntry struct {
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	Rank           int    `json:"rank"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalAnswers   int    `json:"totalAnswers"`
	Streak         int    `json:"streak"`
	IsCurrentUser  bool   `json:"isCurrentUser,omitempty"`
}

// Leaderboard captures the ordered scoreboard for an event. Entries arrive
// rank-ordered and are recomputed wholesale on each refresh.
type Leaderboard struct {
	EventID   string             `json:"eventId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerOutcome is the celebratory signal emitted for an accepted response.
type AnswerOutcome struct {
	QuestionID   string `json:"questionId"`
	Correct      bool   `json:"correct"`
	PointsEarned int    `json:"pointsEarned"`
	NewStreak    int    `json:"newStreak"`
	TotalScore   int    `json:"totalScore"`
}

// SubmitVerdict tags the outcome of a submission attempt. Expected rejections
// (duplicate, closed question) are verdicts rather than errors so callers can
// present contextual messaging instead of failing.
type SubmitVerdict string

const (
	VerdictAccepted         SubmitVerdict = "accepted"
	VerdictDuplicate        SubmitVerdict = "duplicate"
	VerdictQuestionClosed   SubmitVerdict = "questionClosed"
	VerdictQuestionMismatch SubmitVerdict = "questionMismatch"
	VerdictInvalidOption    SubmitVerdict = "invalidOption"
)

// SubmitResult is the tagged result of a submission. Response, Outcome and
// Leaderboard are populated only when the verdict is VerdictAccepted.
type SubmitResult struct {
	Verdict     SubmitVerdict  `json:"verdict"`
	Response    *Response      `json:"response,omitempty"`
	Outcome     *AnswerOutcome `json:"outcome,omitempty"`
	Leaderboard *Leaderboard   `json:"leaderboard,omitempty"`
}

// Accepted reports whether the submission was recorded.
func (r SubmitResult) Accepted() bool { return r.Verdict == VerdictAccepted }

// EventState is the serializable snapshot of one live session: the whole
// state a renderer needs, owned by the session controller and replaced
// wholesale on change. The active question is redacted while open.
type EventState struct {
	EventID          string      `json:"eventId"`
	Title            string      `json:"title"`
	Rounds           []Round     `json:"rounds"`
	ActiveRound      *Round      `json:"activeRound,omitempty"`
	ActiveQuestion   *Question   `json:"activeQuestion,omitempty"`
	RemainingSeconds int         `json:"remainingSeconds"`
	Leaderboard      Leaderboard `json:"leaderboard"`
	Viewers          int         `json:"viewers"`
	You              *Score      `json:"you,omitempty"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Badge is a celebration award earned by crossing a scoring threshold.
// Zero-valued thresholds are ignored.
type Badge struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MinStreak  int    `json:"minStreak,omitempty"`
	MinScore   int    `json:"minScore,omitempty"`
	MinCorrect int    `json:"minCorrect,omitempty"`
}

// BadgeAward records that a user earned a badge during an event.
type BadgeAward struct {
	UserID    string    `json:"userId"`
	Badge     Badge     `json:"badge"`
	AwardedAt time.Time `json:"awardedAt"`
}
