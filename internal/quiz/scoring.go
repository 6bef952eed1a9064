package quiz

import (
	"slices"
	"time"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// RequiredCorrect returns the number of correct answers needed to pass a run of total
// answered questions: 17 for the official 33-question test, otherwise ceil(0.51 * total).
func RequiredCorrect(total int) int {
	if total == FullTestQuestions {
		return PassThresholdFullTest
	}
	return (51*total + 99) / 100
}

// Passed applies the pass rule to a scored run.
func Passed(correct, total int) bool {
	return correct >= RequiredCorrect(total)
}

// Score grades the answered positions of questions. answers maps a position in questions
// to the 0-based selected answer; positions without an entry, and positions outside
// questions, are not counted at all.
func Score(typ model.SessionType, questions []model.Question, answers map[int]int, startedAt, now time.Time) model.SessionResult {
	positions := make([]int, 0, len(answers))
	for pos := range answers {
		if pos >= 0 && pos < len(questions) {
			positions = append(positions, pos)
		}
	}
	slices.Sort(positions)

	res := model.SessionResult{
		Type:     typ,
		Outcomes: make([]model.QuestionOutcome, 0, len(positions)),
	}
	for _, pos := range positions {
		q := questions[pos]
		selected := answers[pos]
		ok := q.IsCorrect(selected)
		if ok {
			res.Correct++
		} else {
			res.Incorrect++
		}
		res.Outcomes = append(res.Outcomes, model.QuestionOutcome{
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			IsCorrect:      ok,
			Question:       &q,
		})
	}

	res.Total = res.Correct + res.Incorrect
	res.Percentage = model.Percent(res.Correct, res.Total)
	res.Passed = Passed(res.Correct, res.Total)
	if elapsed := now.Sub(startedAt); elapsed > 0 {
		res.TimeSpent = int(elapsed / time.Second)
	}
	return res
}
