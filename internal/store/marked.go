package store

import (
	"context"
	"time"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// AddMark flags a question for review. Marking twice is a no-op.
func (s *Store) AddMark(ctx context.Context, questionID int64) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO marked_questions (question_id, created_at) VALUES (?, ?) ON CONFLICT(question_id) DO NOTHING`,
		questionID, time.Now().UTC(),
	)
	return err
}

func (s *Store) RemoveMark(ctx context.Context, questionID int64) error {
	_, err := s.exec(ctx, s.db, `DELETE FROM marked_questions WHERE question_id = ?`, questionID)
	return err
}

func (s *Store) IsMarked(ctx context.Context, questionID int64) (bool, error) {
	n, err := s.count(ctx, `SELECT COUNT(*) FROM marked_questions WHERE question_id = ?`, questionID)
	return n > 0, err
}

// ToggleMark flips the mark of a question and reports whether it is marked afterwards.
func (s *Store) ToggleMark(ctx context.Context, questionID int64) (bool, error) {
	marked, err := s.IsMarked(ctx, questionID)
	if err != nil {
		return false, err
	}
	if marked {
		return false, s.RemoveMark(ctx, questionID)
	}
	return true, s.AddMark(ctx, questionID)
}

// MarkedQuestions returns the marked questions, restricted to the federal pool plus state.
func (s *Store) MarkedQuestions(ctx context.Context, state string) ([]model.Question, error) {
	where, args := stateFilter(state)
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 JOIN marked_questions m ON m.question_id = q.id
		 WHERE `+where+`
		 ORDER BY q.id`, args...)
}

func (s *Store) MarkedCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM marked_questions`)
}
