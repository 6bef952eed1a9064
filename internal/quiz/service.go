package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// Repository is the persistence collaborator of the quiz service.
type Repository interface {
	AllQuestions(ctx context.Context) ([]model.Question, error)
	QuestionsByCategory(ctx context.Context, category string) ([]model.Question, error)
	IncorrectQuestions(ctx context.Context, state string) ([]model.Question, error)
	MarkedQuestions(ctx context.Context, state string) ([]model.Question, error)
	SaveSessionResult(ctx context.Context, res *model.SessionResult) error
	Settings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error)
	RecordIncorrectAnswer(ctx context.Context, questionID int64, selected, correct int) error
	ClearIncorrectAnswer(ctx context.Context, questionID int64) error
}

// Plan is what the user asked to run. Count 0 selects the default for the mode.
type Plan struct {
	Mode          Mode
	Sub           string
	Count         int
	Chronological bool
}

// DefaultCount returns the question count used when a plan does not set one.
func DefaultCount(mode Mode, sub string) int {
	switch {
	case mode == ModeFull:
		return FullTestQuestions
	case sub == SubNone:
		return PracticeQuestions
	}
	return Unbounded
}

// Service starts and completes attempts against a Repository.
type Service struct {
	repo     Repository
	selector *Selector
	now      func() time.Time
}

// NewService creates a Service. A nil selector shuffles with the global source.
func NewService(repo Repository, selector *Selector) *Service {
	if selector == nil {
		selector = NewSelector(nil)
	}
	return &Service{repo: repo, selector: selector, now: time.Now}
}

// LoadSettings reads the stored settings, falling back to the defaults when the store fails.
func (s *Service) LoadSettings(ctx context.Context) model.Settings {
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		slog.Error("failed to load settings, using defaults", "error", err)
		return model.DefaultSettings()
	}
	return settings
}

// UpdateSettings validates and stores a settings patch.
func (s *Service) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	if patch.SelectedState != nil {
		st := model.NormalizeState(*patch.SelectedState)
		if st != "" && !model.IsState(st) {
			return model.Settings{}, fmt.Errorf("unknown state %q", *patch.SelectedState)
		}
	}
	if patch.TestMode != nil && !patch.TestMode.Valid() {
		return model.Settings{}, fmt.Errorf("unknown test mode %q", *patch.TestMode)
	}
	return s.repo.UpdateSettings(ctx, patch)
}

// Start selects the questions for plan under settings and returns a running attempt.
// An empty question list is not an error.
func (s *Service) Start(ctx context.Context, settings model.Settings, plan Plan) (*Attempt, error) {
	if plan.Mode != ModeFull && plan.Mode != ModePractice {
		return nil, fmt.Errorf("unknown mode %q", plan.Mode)
	}
	state := model.NormalizeState(settings.SelectedState)

	pool, err := s.pool(ctx, state, plan)
	if err != nil {
		return nil, err
	}

	count := plan.Count
	if count <= 0 {
		count = DefaultCount(plan.Mode, plan.Sub)
	}
	questions := s.selector.Select(pool, Request{
		Mode:          plan.Mode,
		Sub:           plan.Sub,
		State:         state,
		Count:         count,
		Chronological: plan.Chronological || !settings.ShuffleQuestions,
	})

	a := NewAttempt(plan.Mode, questions, s.now())
	a.LockAnswers = settings.ImmediateFeedback
	if settings.TimerEnabled {
		a.TimeLimit = TimeLimitFor(plan.Mode)
	}
	slog.Debug("started attempt",
		"attempt", a.ID,
		"mode", plan.Mode,
		"sub", plan.Sub,
		"state", state,
		"questions", len(questions),
	)
	return a, nil
}

func (s *Service) pool(ctx context.Context, state string, plan Plan) ([]model.Question, error) {
	var (
		qs  []model.Question
		err error
	)
	switch {
	case plan.Mode == ModeFull, plan.Sub == SubNone, plan.Sub == SubAll:
		qs, err = s.repo.AllQuestions(ctx)
	case plan.Sub == SubMistakes:
		qs, err = s.repo.IncorrectQuestions(ctx, state)
	case plan.Sub == SubMarked:
		qs, err = s.repo.MarkedQuestions(ctx, state)
	case model.IsState(plan.Sub):
		qs, err = s.repo.QuestionsByCategory(ctx, plan.Sub)
	case IsCategoryKey(plan.Sub):
		qs, err = s.repo.QuestionsByCategory(ctx, model.CategoryFederal)
	default:
		return nil, fmt.Errorf("unknown practice category %q", plan.Sub)
	}
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return qs, nil
}

// Complete finishes the attempt and returns its result. When at least one question was
// answered the result is stored and the mistakes set updated; storage failures are logged
// and do not fail the call.
func (s *Service) Complete(ctx context.Context, a *Attempt) (model.SessionResult, error) {
	res, err := a.Finish(s.now())
	if err != nil {
		return res, err
	}
	if res.Total == 0 {
		slog.Info("attempt discarded without answers", "attempt", a.ID)
		return res, nil
	}

	if err := s.repo.SaveSessionResult(ctx, &res); err != nil {
		slog.Error("failed to save session result", "attempt", a.ID, "error", err)
	} else {
		slog.Info("saved session result",
			"attempt", a.ID,
			"session_id", res.ID,
			"type", res.Type,
			"correct", res.Correct,
			"total", res.Total,
			"passed", res.Passed,
		)
	}

	for _, o := range res.Outcomes {
		if o.IsCorrect {
			err = s.repo.ClearIncorrectAnswer(ctx, o.QuestionID)
		} else {
			err = s.repo.RecordIncorrectAnswer(ctx, o.QuestionID, o.SelectedAnswer, o.Question.CorrectAnswer)
		}
		if err != nil {
			slog.Error("failed to track answer", "question_id", o.QuestionID, "correct", o.IsCorrect, "error", err)
		}
	}
	return res, nil
}
