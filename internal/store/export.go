package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// ExportSessions builds the export document for every stored session, newest first.
// state is recorded in the document as the install's selected state.
func (s *Store) ExportSessions(ctx context.Context, state string) (model.SessionExport, error) {
	exp := model.SessionExport{
		ExportedAt: time.Now().UTC(),
		State:      model.NormalizeState(state),
		Sessions:   []model.SessionRecord{},
	}

	stats, err := s.SessionStats(ctx)
	if err != nil {
		return exp, fmt.Errorf("session stats: %w", err)
	}
	exp.Stats = stats

	n, err := s.SessionCount(ctx)
	if err != nil {
		return exp, fmt.Errorf("count sessions: %w", err)
	}
	sessions, err := s.RecentSessions(ctx, max(n, 1))
	if err != nil {
		return exp, fmt.Errorf("list sessions: %w", err)
	}

	for _, sess := range sessions {
		full, err := s.GetSession(ctx, sess.ID)
		if err != nil {
			return exp, fmt.Errorf("get session %d: %w", sess.ID, err)
		}
		if full == nil {
			continue
		}

		rec := model.SessionRecord{
			ID:         full.ID,
			Type:       full.Type,
			CreatedAt:  full.CreatedAt,
			Total:      full.Total,
			Correct:    full.Correct,
			Percentage: full.Percentage,
			Passed:     full.Passed,
			TimeSpent:  full.TimeSpent,
		}
		for _, o := range full.Outcomes {
			ar := model.AnswerRecord{
				QuestionID: o.QuestionID,
				IsCorrect:  o.IsCorrect,
			}
			if q := o.Question; q != nil {
				ar.Category = q.Category
				ar.Text = q.Text
				ar.CorrectAnswer = q.CorrectAnswerText()
				if q.ValidAnswer(o.SelectedAnswer) {
					ar.SelectedAnswer = q.Answers[o.SelectedAnswer]
				}
			}
			rec.Answers = append(rec.Answers, ar)
		}
		exp.Sessions = append(exp.Sessions, rec)
	}
	return exp, nil
}
