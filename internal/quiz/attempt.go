package quiz

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

var (
	ErrNotStarted         = errors.New("attempt not started")
	ErrAttemptFinished    = errors.New("attempt already finished")
	ErrAnswerLocked       = errors.New("answer already locked")
	ErrPositionOutOfRange = errors.New("question position out of range")
	ErrAnswerOutOfRange   = errors.New("answer index out of range")
)

// Time limits applied when the timer setting is enabled.
const (
	FullTestTimeLimit = 45 * time.Minute
	PracticeTimeLimit = 15 * time.Minute
)

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Attempt is an in-memory quiz run. It is not safe for concurrent use.
type Attempt struct {
	ID        string
	Mode      Mode
	Questions []model.Question
	StartedAt time.Time
	// LockAnswers rejects changing an answer once given.
	LockAnswers bool
	TimeLimit   time.Duration

	status  Status
	answers map[int]int
}

// NewAttempt starts an attempt over questions at now.
func NewAttempt(mode Mode, questions []model.Question, now time.Time) *Attempt {
	return &Attempt{
		ID:        uuid.NewString(),
		Mode:      mode,
		Questions: questions,
		StartedAt: now,
		status:    StatusInProgress,
		answers:   make(map[int]int),
	}
}

// TimeLimitFor returns the countdown for mode.
func TimeLimitFor(mode Mode) time.Duration {
	if mode == ModeFull {
		return FullTestTimeLimit
	}
	return PracticeTimeLimit
}

// Status returns the lifecycle state. A zero Attempt has not been started.
func (a *Attempt) Status() Status {
	if a.status == "" {
		return StatusNotStarted
	}
	return a.status
}

// Select records the 0-based answer for the question at pos.
func (a *Attempt) Select(pos, answer int) error {
	switch a.Status() {
	case StatusNotStarted:
		return ErrNotStarted
	case StatusFinished:
		return ErrAttemptFinished
	}
	if pos < 0 || pos >= len(a.Questions) {
		return ErrPositionOutOfRange
	}
	if !a.Questions[pos].ValidAnswer(answer) {
		return ErrAnswerOutOfRange
	}
	if _, done := a.answers[pos]; done && a.LockAnswers {
		return ErrAnswerLocked
	}
	a.answers[pos] = answer
	return nil
}

// Answer returns the selected answer at pos, if any.
func (a *Attempt) Answer(pos int) (int, bool) {
	v, ok := a.answers[pos]
	return v, ok
}

// Answered returns the number of answered positions.
func (a *Attempt) Answered() int {
	return len(a.answers)
}

// Deadline returns the end of the time limit, or the zero time when there is none.
func (a *Attempt) Deadline() time.Time {
	if a.TimeLimit <= 0 {
		return time.Time{}
	}
	return a.StartedAt.Add(a.TimeLimit)
}

// Expired reports whether the time limit has passed at now.
func (a *Attempt) Expired(now time.Time) bool {
	d := a.Deadline()
	return !d.IsZero() && !now.Before(d)
}

// Finish moves the attempt to Finished and scores the answered positions.
// It is used both for completion and for exit with partial progress.
func (a *Attempt) Finish(now time.Time) (model.SessionResult, error) {
	switch a.Status() {
	case StatusNotStarted:
		return model.SessionResult{}, ErrNotStarted
	case StatusFinished:
		return model.SessionResult{}, ErrAttemptFinished
	}
	a.status = StatusFinished
	return Score(a.Mode.SessionType(), a.Questions, a.answers, a.StartedAt, now), nil
}
