package store

import (
	"context"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// SessionStats summarizes all stored sessions. Empty history yields zeros.
func (s *Store) SessionStats(ctx context.Context) (model.SessionStats, error) {
	var (
		stats model.SessionStats
		sum   int
	)
	err := s.queryRow(ctx, s.db,
		`SELECT COUNT(*), COALESCE(SUM(percentage), 0), COALESCE(MAX(percentage), 0), COALESCE(SUM(time_spent), 0)
		 FROM quiz_sessions`,
	).Scan(&stats.TotalTests, &sum, &stats.BestScore, &stats.TotalStudyTime)
	if err != nil {
		return stats, err
	}
	stats.AverageScore = model.Percent(sum, stats.TotalTests*100)
	return stats, nil
}

// DetailedStats sums answers and passes over all sessions. TotalQuestions is the number of
// questions currently available for state.
func (s *Store) DetailedStats(ctx context.Context, state string) (model.DetailedStats, error) {
	var d model.DetailedStats
	total, err := s.AvailableQuestions(ctx, state)
	if err != nil {
		return d, err
	}
	d.TotalQuestions = total

	err = s.queryRow(ctx, s.db,
		`SELECT COUNT(*),
			COALESCE(SUM(correct_answers), 0),
			COALESCE(SUM(incorrect_answers), 0),
			COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0)
		 FROM quiz_sessions`,
	).Scan(&d.TotalTests, &d.CorrectAnswers, &d.IncorrectAnswers, &d.TestsPassedCount)
	if err != nil {
		return d, err
	}
	d.TestsPassedPercentage = model.Percent(d.TestsPassedCount, d.TotalTests)
	return d, nil
}

// UniqueQuestionsAnswered returns the number of distinct questions answered in any session.
func (s *Store) UniqueQuestionsAnswered(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(DISTINCT question_id) FROM session_answers`)
}

// AnsweredInPool returns the number of distinct questions available for state that were
// answered in any session.
func (s *Store) AnsweredInPool(ctx context.Context, state string) (int, error) {
	where, args := stateFilter(state)
	return s.count(ctx,
		`SELECT COUNT(*) FROM questions q
		 WHERE q.id IN (SELECT question_id FROM session_answers) AND `+where, args...)
}

// Coverage returns the share of the questions available for state that were answered at least
// once, as a rounded percentage. Answers to questions outside the state's pool are not counted.
func (s *Store) Coverage(ctx context.Context, state string) (int, error) {
	available, err := s.AvailableQuestions(ctx, state)
	if err != nil || available == 0 {
		return 0, err
	}
	answered, err := s.AnsweredInPool(ctx, state)
	if err != nil {
		return 0, err
	}
	return model.Percent(answered, available), nil
}
