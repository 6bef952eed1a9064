package model

import "time"

// SessionExport is the top-level JSON structure for session history export.
type SessionExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	State      string          `json:"state,omitempty"`
	Stats      SessionStats    `json:"stats"`
	Sessions   []SessionRecord `json:"sessions"`
}

// SessionRecord holds one stored session with its answers for export.
type SessionRecord struct {
	ID         int64          `json:"id"`
	Type       SessionType    `json:"type"`
	CreatedAt  time.Time      `json:"created_at"`
	Total      int            `json:"total"`
	Correct    int            `json:"correct"`
	Percentage int            `json:"percentage"`
	Passed     bool           `json:"passed"`
	TimeSpent  int            `json:"time_spent"`
	Answers    []AnswerRecord `json:"answers"`
}

// AnswerRecord holds one exported answer.
type AnswerRecord struct {
	QuestionID     int64  `json:"question_id"`
	Category       string `json:"category"`
	Text           string `json:"text"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}
