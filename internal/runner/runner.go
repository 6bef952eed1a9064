// Package runner drives a quiz attempt over a line-oriented terminal.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/jira369/Leben-in-Deutschland/internal/i18n"
	"github.com/jira369/Leben-in-Deutschland/internal/model"
	"github.com/jira369/Leben-in-Deutschland/internal/quiz"
)

// Completer finishes an attempt and persists its result.
type Completer interface {
	Complete(ctx context.Context, a *quiz.Attempt) (model.SessionResult, error)
}

// Marker toggles the bookmark of a question and reports whether it is now marked.
type Marker interface {
	ToggleMark(ctx context.Context, questionID int64) (bool, error)
}

// Runner reads commands from in and writes the quiz to out.
//
// Input is scanned by one goroutine per Runner, started by the first Run and kept until in
// reaches EOF. A line typed after a run has ended is delivered to the next Run. Reuse one
// Runner per input stream; a second Runner on the same stream would compete for its lines.
type Runner struct {
	in    io.Reader
	out   io.Writer
	quiz  Completer
	marks Marker
	now   func() time.Time

	readOnce sync.Once
	lines    <-chan string

	good *color.Color
	bad  *color.Color
	dim  *color.Color
}

// New creates a Runner. marks may be nil, in which case marking is unavailable.
func New(in io.Reader, out io.Writer, c Completer, marks Marker) *Runner {
	return &Runner{
		in:    in,
		out:   out,
		quiz:  c,
		marks: marks,
		now:   time.Now,
		good:  color.New(color.FgGreen, color.Bold),
		bad:   color.New(color.FgRed, color.Bold),
		dim:   color.New(color.Faint),
	}
}

// DisableColor turns off colored output.
func (r *Runner) DisableColor() {
	r.good.DisableColor()
	r.bad.DisableColor()
	r.dim.DisableColor()
}

// Run presents the attempt until every question is answered, the user quits, input ends or the
// time limit passes. The attempt is then completed and the summary printed.
func (r *Runner) Run(ctx context.Context, a *quiz.Attempt) (model.SessionResult, error) {
	if len(a.Questions) == 0 {
		r.println(ctx, "NoQuestions")
		return r.complete(ctx, a)
	}

	r.readOnce.Do(func() { r.lines = readLines(r.in) })
	lines := r.lines

	var expired <-chan time.Time
	if d := a.Deadline(); !d.IsZero() {
		t := time.NewTimer(d.Sub(r.now()))
		defer t.Stop()
		expired = t.C
	}

	pos := 0
	for {
		r.show(ctx, a, pos)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return r.complete(ctx, a)
		case <-expired:
			fmt.Fprintln(r.out)
			r.println(ctx, "TimeUp")
			return r.complete(ctx, a)
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(r.out)
			return r.complete(ctx, a)
		}
		if a.Expired(r.now()) {
			r.println(ctx, "TimeUp")
			return r.complete(ctx, a)
		}

		input := strings.ToLower(strings.TrimSpace(line))
		switch input {
		case "q":
			return r.complete(ctx, a)
		case "n":
			if pos == len(a.Questions)-1 {
				return r.complete(ctx, a)
			}
			pos++
			continue
		case "b":
			if pos > 0 {
				pos--
			}
			continue
		case "m":
			r.toggleMark(ctx, a.Questions[pos])
			continue
		}

		n, err := strconv.Atoi(input)
		if err != nil {
			r.println(ctx, "InvalidInput")
			continue
		}
		if err := a.Select(pos, n-1); err != nil {
			switch {
			case errors.Is(err, quiz.ErrAnswerLocked):
				r.println(ctx, "AnswerLocked")
			case errors.Is(err, quiz.ErrAnswerOutOfRange):
				r.println(ctx, "InvalidInput")
			default:
				return model.SessionResult{}, err
			}
			continue
		}
		if a.LockAnswers {
			r.feedback(ctx, a.Questions[pos], n-1)
		}

		next, more := nextUnanswered(a, pos)
		if !more {
			return r.complete(ctx, a)
		}
		pos = next
	}
}

// nextUnanswered returns the first unanswered position after pos, wrapping around.
func nextUnanswered(a *quiz.Attempt, pos int) (int, bool) {
	n := len(a.Questions)
	for i := 1; i < n; i++ {
		p := (pos + i) % n
		if _, done := a.Answer(p); !done {
			return p, true
		}
	}
	return 0, false
}

func (r *Runner) show(ctx context.Context, a *quiz.Attempt, pos int) {
	q := a.Questions[pos]

	fmt.Fprintln(r.out)
	r.dim.Fprintln(r.out, i18n.Td(ctx, "QuestionHeader", map[string]any{
		"N":        pos + 1,
		"Total":    len(a.Questions),
		"Category": q.Category,
	}))
	if d := a.Deadline(); !d.IsZero() {
		left := max(d.Sub(r.now()), 0)
		r.dim.Fprintln(r.out, i18n.Td(ctx, "TimeLeft", map[string]any{"Left": left.Truncate(time.Second).String()}))
	}
	fmt.Fprintln(r.out, q.Text)
	if q.ImagePath != "" {
		r.dim.Fprintln(r.out, i18n.Td(ctx, "ImageHint", map[string]any{"Path": q.ImagePath}))
	}

	selected, answered := a.Answer(pos)
	for i, ans := range q.Answers {
		mark := " "
		if answered && selected == i {
			mark = "*"
		}
		fmt.Fprintf(r.out, " %s %d) %s\n", mark, i+1, ans)
	}
	fmt.Fprint(r.out, i18n.T(ctx, "AnswerPrompt"))
}

func (r *Runner) feedback(ctx context.Context, q model.Question, selected int) {
	if q.IsCorrect(selected) {
		r.good.Fprintln(r.out, i18n.T(ctx, "Correct"))
		return
	}
	r.bad.Fprintln(r.out, i18n.Td(ctx, "Wrong", map[string]any{"Answer": q.CorrectAnswerText()}))
	if q.Explanation != "" {
		fmt.Fprintln(r.out, i18n.Td(ctx, "Explanation", map[string]any{"Text": q.Explanation}))
	}
}

func (r *Runner) toggleMark(ctx context.Context, q model.Question) {
	if r.marks == nil {
		r.println(ctx, "MarkFailed")
		return
	}
	marked, err := r.marks.ToggleMark(ctx, q.ID)
	if err != nil {
		slog.Error("failed to toggle mark", "question_id", q.ID, "error", err)
		r.println(ctx, "MarkFailed")
		return
	}
	if marked {
		r.println(ctx, "Marked")
	} else {
		r.println(ctx, "Unmarked")
	}
}

// complete finishes the attempt even when ctx was cancelled, so partial progress is kept.
func (r *Runner) complete(ctx context.Context, a *quiz.Attempt) (model.SessionResult, error) {
	res, err := r.quiz.Complete(context.WithoutCancel(ctx), a)
	if err != nil {
		return res, err
	}
	r.summary(ctx, res, len(a.Questions) > 0)
	return res, nil
}

func (r *Runner) summary(ctx context.Context, res model.SessionResult, hadQuestions bool) {
	if res.Total == 0 {
		if hadQuestions {
			r.println(ctx, "NoAnswers")
		}
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, i18n.Td(ctx, "ResultSummary", map[string]any{
		"Correct":    res.Correct,
		"Total":      res.Total,
		"Percentage": res.Percentage,
	}))
	if res.Passed {
		r.good.Fprintln(r.out, i18n.T(ctx, "Passed"))
	} else {
		r.bad.Fprintln(r.out, i18n.Td(ctx, "Failed", map[string]any{"Required": quiz.RequiredCorrect(res.Total)}))
	}
	spent := time.Duration(res.TimeSpent) * time.Second
	fmt.Fprintln(r.out, i18n.Td(ctx, "TimeSpent", map[string]any{"Duration": spent.String()}))

	var wrong []model.QuestionOutcome
	for _, o := range res.Outcomes {
		if !o.IsCorrect && o.Question != nil {
			wrong = append(wrong, o)
		}
	}
	if len(wrong) == 0 {
		return
	}
	fmt.Fprintln(r.out)
	r.println(ctx, "ReviewHeader")
	for _, o := range wrong {
		q := o.Question
		fmt.Fprintf(r.out, "- [%d] %s\n", q.ID, q.Text)
		your := ""
		if q.ValidAnswer(o.SelectedAnswer) {
			your = q.Answers[o.SelectedAnswer]
		}
		r.bad.Fprintln(r.out, "  "+i18n.Td(ctx, "ReviewYourAnswer", map[string]any{"Answer": your}))
		r.good.Fprintln(r.out, "  "+i18n.Td(ctx, "ReviewCorrectAnswer", map[string]any{"Answer": q.CorrectAnswerText()}))
	}
}

func (r *Runner) println(ctx context.Context, msgID string) {
	fmt.Fprintln(r.out, i18n.T(ctx, msgID))
}

// readLines scans in on its own goroutine so the run loop can wait on the timer as well. The
// goroutine ends when in reaches EOF or fails; a read blocked on a terminal cannot be cancelled.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			ch <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			slog.Error("failed to read input", "error", err)
		}
	}()
	return ch
}
