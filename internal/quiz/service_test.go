package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

type fakeRepo struct {
	bank      []model.Question
	incorrect map[int64]int
	marked    map[int64]bool
	settings  model.Settings
	saved     []model.SessionResult
	saveErr   error
	loadErr   error
	calls     []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		bank:      testBank(),
		incorrect: make(map[int64]int),
		marked:    make(map[int64]bool),
		settings:  model.DefaultSettings(),
	}
}

func (f *fakeRepo) AllQuestions(context.Context) ([]model.Question, error) {
	f.calls = append(f.calls, "all")
	return f.bank, f.loadErr
}

func (f *fakeRepo) QuestionsByCategory(_ context.Context, category string) ([]model.Question, error) {
	f.calls = append(f.calls, "category:"+category)
	return filter(f.bank, func(q model.Question) bool { return q.Category == category }), f.loadErr
}

func (f *fakeRepo) inState(state string, keep func(model.Question) bool) []model.Question {
	state = model.NormalizeState(state)
	return filter(f.bank, func(q model.Question) bool {
		return keep(q) && (q.IsFederal() || (state != "" && q.Category == state))
	})
}

func (f *fakeRepo) IncorrectQuestions(_ context.Context, state string) ([]model.Question, error) {
	f.calls = append(f.calls, "incorrect")
	return f.inState(state, func(q model.Question) bool { _, ok := f.incorrect[q.ID]; return ok }), nil
}

func (f *fakeRepo) MarkedQuestions(_ context.Context, state string) ([]model.Question, error) {
	f.calls = append(f.calls, "marked")
	return f.inState(state, func(q model.Question) bool { return f.marked[q.ID] }), nil
}

func (f *fakeRepo) SaveSessionResult(_ context.Context, res *model.SessionResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	res.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, *res)
	return nil
}

func (f *fakeRepo) Settings(context.Context) (model.Settings, error) {
	return f.settings, f.loadErr
}

func (f *fakeRepo) UpdateSettings(_ context.Context, patch model.SettingsPatch) (model.Settings, error) {
	f.settings = patch.Apply(f.settings)
	return f.settings, nil
}

func (f *fakeRepo) RecordIncorrectAnswer(_ context.Context, questionID int64, selected, _ int) error {
	f.incorrect[questionID] = selected
	return nil
}

func (f *fakeRepo) ClearIncorrectAnswer(_ context.Context, questionID int64) error {
	delete(f.incorrect, questionID)
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, seeded(99))
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	return svc
}

func TestServiceStartFullTest(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	settings := model.DefaultSettings()
	settings.SelectedState = "Berlin"
	settings.TimerEnabled = true

	a, err := svc.Start(context.Background(), settings, Plan{Mode: ModeFull})
	require.NoError(t, err)
	assert.Len(t, a.Questions, FullTestQuestions)
	assert.Equal(t, FullTestTimeLimit, a.TimeLimit)
	assert.True(t, a.LockAnswers)

	var state int
	for _, q := range a.Questions {
		if q.Category == "Berlin" {
			state++
		}
	}
	assert.Equal(t, StateQuestionsPerTest, state)
}

func TestServiceStartPracticeDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	settings := model.DefaultSettings()
	settings.ShuffleQuestions = false
	settings.ImmediateFeedback = false

	a, err := svc.Start(context.Background(), settings, Plan{Mode: ModePractice})
	require.NoError(t, err)
	require.Len(t, a.Questions, PracticeQuestions)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(a.Questions))
	assert.False(t, a.LockAnswers)
	assert.Zero(t, a.TimeLimit)
}

func TestServiceStartCategories(t *testing.T) {
	tests := []struct {
		sub  string
		call string
		want int
	}{
		{SubAll, "all", 300},
		{"Bayern", "category:Bayern", 10},
		{CategoryFederalKey, "category:Bundesweit", 300},
		{"geschichte", "category:Bundesweit", 0},
	}
	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			repo := newFakeRepo()
			svc := newTestService(repo)
			a, err := svc.Start(context.Background(), model.DefaultSettings(), Plan{Mode: ModePractice, Sub: tt.sub})
			require.NoError(t, err)
			assert.Len(t, a.Questions, tt.want)
			assert.Equal(t, []string{tt.call}, repo.calls)
		})
	}
}

func TestServiceStartErrors(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.Start(context.Background(), model.DefaultSettings(), Plan{Mode: "sprint"})
	assert.Error(t, err)

	_, err = svc.Start(context.Background(), model.DefaultSettings(), Plan{Mode: ModePractice, Sub: "wetter"})
	assert.Error(t, err)

	repo.loadErr = errors.New("disk on fire")
	_, err = svc.Start(context.Background(), model.DefaultSettings(), Plan{Mode: ModeFull})
	assert.ErrorIs(t, err, repo.loadErr)
}

func TestServiceMistakesRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// No mistakes yet: the run is empty and discarded.
	a, err := svc.Start(ctx, model.DefaultSettings(), Plan{Mode: ModePractice, Sub: SubMistakes})
	require.NoError(t, err)
	assert.Empty(t, a.Questions)
	res, err := svc.Complete(ctx, a)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, repo.saved)

	a, err = svc.Start(ctx, model.DefaultSettings(), Plan{Mode: ModePractice, Sub: SubAll, Chronological: true})
	require.NoError(t, err)
	require.NoError(t, a.Select(0, 0)) // wrong
	require.NoError(t, a.Select(1, 1)) // right
	require.NoError(t, a.Select(2, 3)) // wrong
	res, err = svc.Complete(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, 60, res.TimeSpent)
	assert.Equal(t, map[int64]int{1: 0, 3: 3}, repo.incorrect)

	a, err = svc.Start(ctx, model.DefaultSettings(), Plan{Mode: ModePractice, Sub: SubMistakes, Chronological: true})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids(a.Questions))
	require.NoError(t, a.Select(0, 1))
	_, err = svc.Complete(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{3: 3}, repo.incorrect)

	_, err = svc.Complete(ctx, a)
	assert.ErrorIs(t, err, ErrAttemptFinished)
}

func TestServiceCompleteStoreFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("read-only database")
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.Start(ctx, model.DefaultSettings(), Plan{Mode: ModeFull})
	require.NoError(t, err)
	for i := range a.Questions {
		require.NoError(t, a.Select(i, 1))
	}
	res, err := svc.Complete(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 33, res.Correct)
	assert.True(t, res.Passed)
	assert.Zero(t, res.ID)
}

func TestServiceSettings(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	bad := "Atlantis"
	_, err := svc.UpdateSettings(ctx, model.SettingsPatch{SelectedState: &bad})
	assert.Error(t, err)

	mode := model.SessionType("blitz")
	_, err = svc.UpdateSettings(ctx, model.SettingsPatch{TestMode: &mode})
	assert.Error(t, err)

	state := "Hamburg"
	got, err := svc.UpdateSettings(ctx, model.SettingsPatch{SelectedState: &state})
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", got.SelectedState)
	assert.True(t, got.HasSelectedState)
	assert.Equal(t, got, svc.LoadSettings(ctx))

	repo.loadErr = errors.New("locked")
	assert.Equal(t, model.DefaultSettings(), svc.LoadSettings(ctx))
}
