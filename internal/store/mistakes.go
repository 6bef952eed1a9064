package store

import (
	"context"
	"time"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// RecordIncorrectAnswer adds a wrong answer to the mistakes set.
func (s *Store) RecordIncorrectAnswer(ctx context.Context, questionID int64, selected, correct int) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO incorrect_answers (question_id, selected_answer, correct_answer, created_at) VALUES (?, ?, ?, ?)`,
		questionID, selected, correct, time.Now().UTC(),
	)
	return err
}

// ClearIncorrectAnswer removes every recorded mistake for a question.
func (s *Store) ClearIncorrectAnswer(ctx context.Context, questionID int64) error {
	_, err := s.exec(ctx, s.db, `DELETE FROM incorrect_answers WHERE question_id = ?`, questionID)
	return err
}

// ClearAllIncorrect empties the mistakes set.
func (s *Store) ClearAllIncorrect(ctx context.Context) error {
	_, err := s.exec(ctx, s.db, `DELETE FROM incorrect_answers`)
	return err
}

// IncorrectAnswers returns the recorded wrong answers, oldest first.
func (s *Store) IncorrectAnswers(ctx context.Context) ([]model.IncorrectAnswer, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, question_id, selected_answer, correct_answer, created_at FROM incorrect_answers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.IncorrectAnswer
	for rows.Next() {
		var ia model.IncorrectAnswer
		if err := rows.Scan(&ia.ID, &ia.QuestionID, &ia.SelectedAnswer, &ia.CorrectAnswer, &ia.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ia)
	}
	return out, rows.Err()
}

// IncorrectQuestions returns the questions with a recorded mistake, restricted to the federal
// pool plus state.
func (s *Store) IncorrectQuestions(ctx context.Context, state string) ([]model.Question, error) {
	where, args := stateFilter(state)
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 WHERE q.id IN (SELECT question_id FROM incorrect_answers) AND `+where+`
		 ORDER BY q.id`, args...)
}

// IncorrectCount returns the number of distinct questions in the mistakes set.
func (s *Store) IncorrectCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(DISTINCT question_id) FROM incorrect_answers`)
}
