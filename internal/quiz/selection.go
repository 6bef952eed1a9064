package quiz

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// Fixed structure of the official test.
const (
	FullTestQuestions       = 33
	FederalQuestionsPerTest = 30
	StateQuestionsPerTest   = FullTestQuestions - FederalQuestionsPerTest
	PracticeQuestions       = 10
	PassThresholdFullTest   = 17

	// Unbounded requests every matching question.
	Unbounded = math.MaxInt
)

// Mode is the kind of run being requested.
type Mode string

const (
	ModeFull     Mode = "full"
	ModePractice Mode = "practice"
)

// SessionType maps the run mode to the type stored with its result.
func (m Mode) SessionType() model.SessionType {
	if m == ModeFull {
		return model.SessionFull
	}
	return model.SessionPractice
}

// Sub-modes of a practice run. Any other non-empty value is a category key.
const (
	SubNone     = ""
	SubAll      = "all"
	SubMistakes = "mistakes"
	SubMarked   = "marked"
)

// Request describes the question list to produce.
type Request struct {
	Mode          Mode
	Sub           string
	State         string
	Count         int
	Chronological bool
}

// Selector produces ordered question lists. It holds no state besides its entropy source.
type Selector struct {
	rng *rand.Rand
}

// NewSelector returns a Selector shuffling with rng, or with the global source when rng is nil.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// Select filters pool according to req, orders the result and truncates it to req.Count.
// For the mistakes and marked sub-modes, pool is the subset supplied by the store; otherwise
// it is the whole question bank. The input slice is never modified.
func (s *Selector) Select(pool []model.Question, req Request) []model.Question {
	pool = dedupe(pool)
	state := model.NormalizeState(req.State)

	var picked []model.Question
	switch {
	case req.Mode == ModeFull:
		picked = s.selectFull(pool, state, req.Count)
	case req.Sub == SubMistakes || req.Sub == SubMarked:
		picked = pool
	case req.Sub == SubAll || req.Sub == SubNone:
		picked = filter(pool, func(q model.Question) bool {
			return q.IsFederal() || (state != "" && q.Category == state)
		})
	default:
		picked = FilterCategory(pool, req.Sub)
	}

	if req.Chronological {
		SortChronological(picked)
	} else {
		s.Shuffle(picked)
	}
	return truncate(picked, req.Count)
}

// selectFull draws the federal share and the state share separately when a state is set.
func (s *Selector) selectFull(pool []model.Question, state string, count int) []model.Question {
	if count <= 0 {
		count = FullTestQuestions
	}
	if state == "" {
		s.Shuffle(pool)
		return truncate(pool, count)
	}
	federal := filter(pool, model.Question.IsFederal)
	s.Shuffle(federal)
	statePool := filter(pool, func(q model.Question) bool { return q.Category == state })
	s.Shuffle(statePool)

	stateCount := min(StateQuestionsPerTest, count)
	picked := make([]model.Question, 0, count)
	picked = append(picked, federal[:min(count-stateCount, len(federal))]...)
	return append(picked, statePool[:min(stateCount, len(statePool))]...)
}

// Shuffle permutes qs in place with a uniform Fisher-Yates shuffle.
func (s *Selector) Shuffle(qs []model.Question) {
	swap := func(i, j int) { qs[i], qs[j] = qs[j], qs[i] }
	if s == nil || s.rng == nil {
		rand.Shuffle(len(qs), swap)
		return
	}
	s.rng.Shuffle(len(qs), swap)
}

// SortChronological orders qs by ascending question id.
func SortChronological(qs []model.Question) {
	slices.SortStableFunc(qs, func(a, b model.Question) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func truncate(qs []model.Question, count int) []model.Question {
	if count <= 0 || count >= len(qs) {
		return qs
	}
	return qs[:count]
}

// dedupe copies qs, dropping repeated ids after their first occurrence.
func dedupe(qs []model.Question) []model.Question {
	seen := make(map[int64]struct{}, len(qs))
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}
