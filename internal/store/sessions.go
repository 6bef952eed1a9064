package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

const sessionColumns = `id, type, total_questions, correct_answers, incorrect_answers, percentage, passed, time_spent, created_at`

func scanSession(r rowScanner) (model.SessionResult, error) {
	var res model.SessionResult
	err := r.Scan(&res.ID, &res.Type, &res.Total, &res.Correct, &res.Incorrect,
		&res.Percentage, &res.Passed, &res.TimeSpent, &res.CreatedAt)
	return res, err
}

// SaveSessionResult stores res with its per-question outcomes in one transaction and sets
// res.ID. A zero CreatedAt is set to the current time.
func (s *Store) SaveSessionResult(ctx context.Context, res *model.SessionResult) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	err = s.queryRow(ctx, tx,
		`INSERT INTO quiz_sessions (type, total_questions, correct_answers, incorrect_answers, percentage, passed, time_spent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		res.Type, res.Total, res.Correct, res.Incorrect, res.Percentage, res.Passed, res.TimeSpent, res.CreatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, o := range res.Outcomes {
		_, err := s.exec(ctx, tx,
			`INSERT INTO session_answers (session_id, position, question_id, selected_answer, is_correct)
			 VALUES (?, ?, ?, ?, ?)`,
			id, i, o.QuestionID, o.SelectedAnswer, o.IsCorrect,
		)
		if err != nil {
			return fmt.Errorf("insert answer %d: %w", o.QuestionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	res.ID = id
	return nil
}

// RecentSessions returns up to limit sessions, newest first, without their outcomes.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]model.SessionResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.query(ctx, s.db,
		`SELECT `+sessionColumns+` FROM quiz_sessions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionResult
	for rows.Next() {
		res, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, res)
	}
	return sessions, rows.Err()
}

// GetSession returns a session with its outcomes, or nil if it does not exist.
// Outcomes whose question has since left the bank carry a nil Question.
func (s *Store) GetSession(ctx context.Context, id int64) (*model.SessionResult, error) {
	res, err := scanSession(s.queryRow(ctx, s.db,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res.Outcomes, err = s.sessionOutcomes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %d outcomes: %w", id, err)
	}
	return &res, nil
}

func (s *Store) sessionOutcomes(ctx context.Context, sessionID int64) ([]model.QuestionOutcome, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT a.question_id, a.selected_answer, a.is_correct
		 FROM session_answers a WHERE a.session_id = ? ORDER BY a.position`, sessionID)
	if err != nil {
		return nil, err
	}
	var outcomes []model.QuestionOutcome
	for rows.Next() {
		var o model.QuestionOutcome
		if err := rows.Scan(&o.QuestionID, &o.SelectedAnswer, &o.IsCorrect); err != nil {
			rows.Close()
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	// Close before the lookups below; SQLite runs on a single connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range outcomes {
		q, err := s.GetQuestion(ctx, outcomes[i].QuestionID)
		if err != nil {
			return nil, err
		}
		outcomes[i].Question = q
	}
	return outcomes, nil
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM quiz_sessions`)
}
