package model

import (
	"slices"
	"time"
)

// CategoryFederal is the category label of the nationwide question pool.
const CategoryFederal = "Bundesweit"

// States lists the 16 federal states, each owning a small state-specific question pool.
var States = []string{
	"Baden-Württemberg",
	"Bayern",
	"Berlin",
	"Brandenburg",
	"Bremen",
	"Hamburg",
	"Hessen",
	"Mecklenburg-Vorpommern",
	"Niedersachsen",
	"Nordrhein-Westfalen",
	"Rheinland-Pfalz",
	"Saarland",
	"Sachsen",
	"Sachsen-Anhalt",
	"Schleswig-Holstein",
	"Thüringen",
}

// IsState reports whether name is one of the 16 federal states.
func IsState(name string) bool {
	return slices.Contains(States, name)
}

// NormalizeState maps the "no state" spellings (empty, "Bundesweit") to "".
func NormalizeState(state string) string {
	if state == CategoryFederal {
		return ""
	}
	return state
}

// AnswersPerQuestion is the fixed number of answer options of every question.
const AnswersPerQuestion = 4

// Question represents one multiple-choice question of the bank.
// CorrectAnswer is a 0-based index into Answers.
type Question struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Answers       []string `json:"answers"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Category      string   `json:"category"`
	ImagePath     string   `json:"image_path,omitempty"`
}

// IsFederal reports whether the question belongs to the nationwide pool.
func (q Question) IsFederal() bool {
	return q.Category == CategoryFederal
}

// ValidAnswer reports whether idx references one of the question's answers.
func (q Question) ValidAnswer(idx int) bool {
	return idx >= 0 && idx < len(q.Answers)
}

// IsCorrect reports whether the 0-based selection matches the stored correct answer.
func (q Question) IsCorrect(selected int) bool {
	return q.ValidAnswer(selected) && selected == q.CorrectAnswer
}

// CorrectAnswerText returns the text of the correct answer, or "" when the index is broken.
func (q Question) CorrectAnswerText() string {
	if !q.ValidAnswer(q.CorrectAnswer) {
		return ""
	}
	return q.Answers[q.CorrectAnswer]
}

// SessionType distinguishes the official test format from practice runs.
type SessionType string

const (
	SessionFull     SessionType = "full"
	SessionPractice SessionType = "practice"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	return t == SessionFull || t == SessionPractice
}

// QuestionOutcome is the graded answer for one presented question.
type QuestionOutcome struct {
	QuestionID     int64     `json:"question_id"`
	SelectedAnswer int       `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	Question       *Question `json:"question,omitempty"`
}

// SessionResult is the scored outcome of one quiz attempt.
type SessionResult struct {
	ID         int64             `json:"id"`
	Type       SessionType       `json:"type"`
	Total      int               `json:"total"`
	Correct    int               `json:"correct"`
	Incorrect  int               `json:"incorrect"`
	Percentage int               `json:"percentage"`
	Passed     bool              `json:"passed"`
	TimeSpent  int               `json:"time_spent"` // seconds
	Outcomes   []QuestionOutcome `json:"outcomes"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Settings holds the single installation-wide user preferences.
type Settings struct {
	SelectedState     string      `json:"selected_state,omitempty"`
	HasSelectedState  bool        `json:"has_selected_state"`
	TimerEnabled      bool        `json:"timer_enabled"`
	ImmediateFeedback bool        `json:"immediate_feedback"`
	ShuffleQuestions  bool        `json:"shuffle_questions"`
	TestMode          SessionType `json:"test_mode"`
}

// DefaultSettings returns the settings created on first read.
func DefaultSettings() Settings {
	return Settings{
		TimerEnabled:      false,
		ImmediateFeedback: true,
		ShuffleQuestions:  true,
		TestMode:          SessionFull,
	}
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	SelectedState     *string
	TimerEnabled      *bool
	ImmediateFeedback *bool
	ShuffleQuestions  *bool
	TestMode          *SessionType
}

// Apply returns s with the non-nil fields of p applied.
// Setting a state (including clearing it) also marks the state as chosen.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.SelectedState != nil {
		s.SelectedState = NormalizeState(*p.SelectedState)
		s.HasSelectedState = true
	}
	if p.TimerEnabled != nil {
		s.TimerEnabled = *p.TimerEnabled
	}
	if p.ImmediateFeedback != nil {
		s.ImmediateFeedback = *p.ImmediateFeedback
	}
	if p.ShuffleQuestions != nil {
		s.ShuffleQuestions = *p.ShuffleQuestions
	}
	if p.TestMode != nil {
		s.TestMode = *p.TestMode
	}
	return s
}

// IncorrectAnswer records one wrong answer to a question.
type IncorrectAnswer struct {
	ID             int64     `json:"id"`
	QuestionID     int64     `json:"question_id"`
	SelectedAnswer int       `json:"selected_answer"`
	CorrectAnswer  int       `json:"correct_answer"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionStats summarizes all recorded sessions.
type SessionStats struct {
	TotalTests     int `json:"total_tests"`
	AverageScore   int `json:"average_score"`
	BestScore      int `json:"best_score"`
	TotalStudyTime int `json:"total_study_time"` // seconds
}

// DetailedStats aggregates answers and pass rates for the given state filter.
type DetailedStats struct {
	TotalQuestions        int `json:"total_questions"`
	CorrectAnswers        int `json:"correct_answers"`
	IncorrectAnswers      int `json:"incorrect_answers"`
	TotalTests            int `json:"total_tests"`
	TestsPassedCount      int `json:"tests_passed_count"`
	TestsPassedPercentage int `json:"tests_passed_percentage"`
}

// QuestionsAnswered returns the number of graded answers across all sessions.
func (d DetailedStats) QuestionsAnswered() int {
	return d.CorrectAnswers + d.IncorrectAnswers
}

// Percent returns round(100 * part / whole), or 0 when whole is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

// QuestionImport is one entry of a question bank JSON file.
type QuestionImport struct {
	ID            int64    `json:"id,omitempty"`
	Text          string   `json:"text"`
	Answers       []string `json:"answers"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Category      string   `json:"category"`
	ImagePath     string   `json:"imagePath,omitempty"`
}
