package store

import (
	"context"
	"database/sql"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// Settings returns the installation settings, creating the default row on first read.
func (s *Store) Settings(ctx context.Context) (model.Settings, error) {
	var st model.Settings
	err := s.queryRow(ctx, s.db,
		`SELECT selected_state, has_selected_state, timer_enabled, immediate_feedback, shuffle_questions, test_mode
		 FROM user_settings WHERE id = 1`,
	).Scan(&st.SelectedState, &st.HasSelectedState, &st.TimerEnabled, &st.ImmediateFeedback, &st.ShuffleQuestions, &st.TestMode)
	if err == sql.ErrNoRows {
		st = model.DefaultSettings()
		return st, s.saveSettings(ctx, st)
	}
	return st, err
}

// UpdateSettings applies patch to the stored settings and returns the result.
func (s *Store) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	cur, err := s.Settings(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	next := patch.Apply(cur)
	if err := s.saveSettings(ctx, next); err != nil {
		return model.Settings{}, err
	}
	return next, nil
}

func (s *Store) saveSettings(ctx context.Context, st model.Settings) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO user_settings (id, selected_state, has_selected_state, timer_enabled, immediate_feedback, shuffle_questions, test_mode)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			selected_state = excluded.selected_state,
			has_selected_state = excluded.has_selected_state,
			timer_enabled = excluded.timer_enabled,
			immediate_feedback = excluded.immediate_feedback,
			shuffle_questions = excluded.shuffle_questions,
			test_mode = excluded.test_mode`,
		st.SelectedState, st.HasSelectedState, st.TimerEnabled, st.ImmediateFeedback, st.ShuffleQuestions, st.TestMode,
	)
	return err
}
