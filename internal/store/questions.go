package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

const questionColumns = `q.id, q.text, q.answers, q.correct_answer, q.explanation, q.category, q.image_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (model.Question, error) {
	var (
		q       model.Question
		answers string
	)
	if err := r.Scan(&q.ID, &q.Text, &answers, &q.CorrectAnswer, &q.Explanation, &q.Category, &q.ImagePath); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(answers), &q.Answers); err != nil {
		return q, fmt.Errorf("question %d: decode answers: %w", q.ID, err)
	}
	return q, nil
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func encodeAnswers(answers []string) (string, error) {
	b, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(b), nil
}

// InsertQuestion stores a new question and returns its id.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	answers, err := encodeAnswers(q.Answers)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.queryRow(ctx, s.db,
		`INSERT INTO questions (text, answers, correct_answer, explanation, category, image_path)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		q.Text, answers, q.CorrectAnswer, q.Explanation, q.Category, q.ImagePath,
	).Scan(&id)
	return id, err
}

// UpsertQuestion stores q under its own id, replacing an existing question with that id.
func (s *Store) UpsertQuestion(ctx context.Context, q model.Question) error {
	answers, err := encodeAnswers(q.Answers)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, s.db,
		`INSERT INTO questions (id, text, answers, correct_answer, explanation, category, image_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			answers = excluded.answers,
			correct_answer = excluded.correct_answer,
			explanation = excluded.explanation,
			category = excluded.category,
			image_path = excluded.image_path`,
		q.ID, q.Text, answers, q.CorrectAnswer, q.Explanation, q.Category, q.ImagePath,
	)
	if err != nil {
		return err
	}
	if s.dialect == dialectPostgres {
		// Explicit ids do not advance the serial sequence.
		_, err = s.exec(ctx, s.db,
			`SELECT setval(pg_get_serial_sequence('questions', 'id'), (SELECT MAX(id) FROM questions))`)
	}
	return err
}

// AllQuestions returns the whole bank ordered by id.
func (s *Store) AllQuestions(ctx context.Context) ([]model.Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions q ORDER BY q.id`)
}

// QuestionsByCategory returns the questions with exactly the given category label.
func (s *Store) QuestionsByCategory(ctx context.Context, category string) ([]model.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions q WHERE q.category = ? ORDER BY q.id`, category)
}

// GetQuestion returns a question by id, or nil if it does not exist.
func (s *Store) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	q, err := scanQuestion(s.queryRow(ctx, s.db,
		`SELECT `+questionColumns+` FROM questions q WHERE q.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// QuestionCount returns the number of questions in the bank.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM questions`)
}

// AvailableQuestions returns the number of questions a user with the given state can get:
// the federal pool plus that state's questions.
func (s *Store) AvailableQuestions(ctx context.Context, state string) (int, error) {
	where, args := stateFilter(state)
	return s.count(ctx, `SELECT COUNT(*) FROM questions q WHERE `+where, args...)
}

// CategoryCounts returns the number of questions per category label.
func (s *Store) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.query(ctx, s.db, `SELECT category, COUNT(*) FROM questions GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// UpdateExplanation replaces the explanation of a question.
func (s *Store) UpdateExplanation(ctx context.Context, id int64, explanation string) error {
	res, err := s.exec(ctx, s.db, `UPDATE questions SET explanation = ? WHERE id = ?`, explanation, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("question %d not found", id)
	}
	return nil
}

// QuestionsMissingExplanation returns up to limit questions without an explanation.
// limit <= 0 returns all of them.
func (s *Store) QuestionsMissingExplanation(ctx context.Context, limit int) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q WHERE q.explanation = '' ORDER BY q.id`
	if limit > 0 {
		return s.queryQuestions(ctx, query+` LIMIT ?`, limit)
	}
	return s.queryQuestions(ctx, query)
}

// stateFilter returns the WHERE fragment restricting questions q to the federal pool plus state.
// An empty or "Bundesweit" state restricts to the federal pool only.
func stateFilter(state string) (string, []any) {
	state = model.NormalizeState(state)
	if state == "" {
		return `q.category = ?`, []any{model.CategoryFederal}
	}
	return `(q.category = ? OR q.category = ?)`, []any{model.CategoryFederal, state}
}
