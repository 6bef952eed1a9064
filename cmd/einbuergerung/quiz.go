package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jira369/Leben-in-Deutschland/internal/i18n"
	"github.com/jira369/Leben-in-Deutschland/internal/model"
	"github.com/jira369/Leben-in-Deutschland/internal/quiz"
	"github.com/jira369/Leben-in-Deutschland/internal/runner"
)

func quizCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quiz",
		Short: "Take a test in the configured test mode (33 questions for the full test)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			svc := quiz.NewService(a.db, nil)
			settings := svc.LoadSettings(a.ctx)
			plan := quiz.Plan{Mode: quiz.ModeFull}
			if settings.TestMode == model.SessionPractice {
				plan.Mode = quiz.ModePractice
			}
			return a.run(svc, settings, plan)
		},
	}
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Practice a selection of questions",
		Args:  cobra.NoArgs,
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.StringP("mode", "m", "", "Question pool (all, mistakes, marked); empty for a standard round")
	f.StringP("category", "c", "", "Category: bundesweit, a state or a topic key (see categories)")
	f.IntP("count", "n", 0, "Number of questions (0 = default for the pool)")
	f.Bool("chronological", false, "Keep catalog order instead of shuffling")
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	mode := a.v.GetString("mode")
	category := a.v.GetString("category")

	plan := quiz.Plan{
		Mode:          quiz.ModePractice,
		Count:         a.v.GetInt("count"),
		Chronological: a.v.GetBool("chronological"),
	}
	switch {
	case mode != "" && category != "":
		return fmt.Errorf("--mode and --category cannot be combined")
	case category != "":
		if !quiz.IsCategoryKey(category) {
			return fmt.Errorf("unknown category %q", category)
		}
		plan.Sub = category
	case mode == quiz.SubNone, mode == quiz.SubAll, mode == quiz.SubMistakes, mode == quiz.SubMarked:
		plan.Sub = mode
	default:
		return fmt.Errorf("unknown practice mode %q", mode)
	}

	svc := quiz.NewService(a.db, nil)
	return a.run(svc, svc.LoadSettings(a.ctx), plan)
}

// run starts an attempt for plan and hands it to the terminal runner. An interrupt finishes
// the attempt with the answers given so far.
func (a *app) run(svc *quiz.Service, settings model.Settings, plan quiz.Plan) error {
	if !settings.HasSelectedState {
		a.say("ChooseStateHint", nil)
	}

	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt)
	defer stop()

	attempt, err := svc.Start(ctx, settings, plan)
	if err != nil {
		return fmt.Errorf("start quiz: %w", err)
	}
	if n := len(attempt.Questions); n > 0 {
		fmt.Fprintln(a.out, i18n.Tp(ctx, "QuestionsAvailable", n))
	}

	r := runner.New(os.Stdin, a.out, svc, a.db)
	if a.v.GetBool("no-color") {
		r.DisableColor()
	}
	_, err = r.Run(ctx, attempt)
	return err
}
