package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jira369/Leben-in-Deutschland/internal/bank"
	"github.com/jira369/Leben-in-Deutschland/internal/i18n"
	"github.com/jira369/Leben-in-Deutschland/internal/llm"
	"github.com/jira369/Leben-in-Deutschland/internal/llm/prompts"
	"github.com/jira369/Leben-in-Deutschland/internal/model"
	"github.com/jira369/Leben-in-Deutschland/internal/quiz"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import question bank JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			im, err := bank.NewImporter(a.db, a.v.GetInt("answer-base"))
			if err != nil {
				return err
			}
			for _, path := range args {
				res, err := im.ImportFile(a.ctx, path)
				if err != nil {
					return err
				}
				if res.Unchanged {
					a.say("ImportUnchanged", map[string]any{"Path": path})
					continue
				}
				a.say("ImportSummary", map[string]any{
					"Path":     path,
					"Inserted": res.Inserted,
					"Updated":  res.Updated,
					"Skipped":  res.Skipped,
				})
			}
			return nil
		},
	}
	cmd.Flags().Int("answer-base", 0, "Index of the first answer in correctAnswer values (0 or 1)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show learning statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	settings, err := a.db.Settings(a.ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	state := settings.SelectedState

	sessions, err := a.db.SessionStats(a.ctx)
	if err != nil {
		return fmt.Errorf("session stats: %w", err)
	}
	detailed, err := a.db.DetailedStats(a.ctx, state)
	if err != nil {
		return fmt.Errorf("detailed stats: %w", err)
	}
	answered, err := a.db.AnsweredInPool(a.ctx, state)
	if err != nil {
		return fmt.Errorf("answered questions: %w", err)
	}
	coverage, err := a.db.Coverage(a.ctx, state)
	if err != nil {
		return fmt.Errorf("coverage: %w", err)
	}
	mistakes, err := a.db.IncorrectCount(a.ctx)
	if err != nil {
		return fmt.Errorf("count mistakes: %w", err)
	}
	marked, err := a.db.MarkedCount(a.ctx)
	if err != nil {
		return fmt.Errorf("count marked: %w", err)
	}

	a.say("StatsHeader", nil)
	a.say("StatsTests", map[string]any{"Count": sessions.TotalTests})
	a.say("StatsAverage", map[string]any{"Percent": sessions.AverageScore})
	a.say("StatsBest", map[string]any{"Percent": sessions.BestScore})
	a.say("StatsStudyTime", map[string]any{"Duration": seconds(sessions.TotalStudyTime)})
	a.say("StatsAnswers", map[string]any{
		"Correct":   detailed.CorrectAnswers,
		"Incorrect": detailed.IncorrectAnswers,
	})
	a.say("StatsPassed", map[string]any{
		"Count":   detailed.TestsPassedCount,
		"Total":   detailed.TotalTests,
		"Percent": detailed.TestsPassedPercentage,
	})
	a.say("StatsCoverage", map[string]any{
		"Unique":  answered,
		"Total":   detailed.TotalQuestions,
		"Percent": coverage,
	})
	fmt.Fprintln(a.out, i18n.Tp(a.ctx, "StatsMistakes", mistakes))
	fmt.Fprintln(a.out, i18n.Tp(a.ctx, "StatsMarked", marked))
	return nil
}

func seconds(n int) string {
	return (time.Duration(n) * time.Second).String()
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List recent tests, or show the answers of one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 10, "Number of sessions to list")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}
		return a.showSession(id)
	}

	sessions, err := a.db.RecentSessions(a.ctx, a.v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("recent sessions: %w", err)
	}
	if len(sessions) == 0 {
		a.say("HistoryEmpty", nil)
		return nil
	}
	for _, s := range sessions {
		a.historyRow(s)
	}
	return nil
}

func (a *app) historyRow(s model.SessionResult) {
	typ := "SessionTypePractice"
	if s.Type == model.SessionFull {
		typ = "SessionTypeFull"
	}
	result := "ResultFailed"
	if s.Passed {
		result = "ResultPassed"
	}
	a.say("HistoryRow", map[string]any{
		"ID":         s.ID,
		"Date":       s.CreatedAt.Local().Format("2006-01-02 15:04"),
		"Type":       i18n.T(a.ctx, typ),
		"Correct":    s.Correct,
		"Total":      s.Total,
		"Percentage": s.Percentage,
		"Result":     i18n.T(a.ctx, result),
	})
}

func (a *app) showSession(id int64) error {
	s, err := a.db.GetSession(a.ctx, id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if s == nil {
		return errors.New(i18n.Td(a.ctx, "SessionNotFound", map[string]any{"ID": id}))
	}

	a.historyRow(*s)
	for _, o := range s.Outcomes {
		sign := "+"
		if !o.IsCorrect {
			sign = "-"
		}
		if o.Question == nil {
			fmt.Fprintf(a.out, "%s [%d]\n", sign, o.QuestionID)
			continue
		}
		q := o.Question
		fmt.Fprintf(a.out, "%s [%d] %s\n", sign, q.ID, q.Text)
		if !o.IsCorrect && q.ValidAnswer(o.SelectedAnswer) {
			fmt.Fprintln(a.out, "  "+i18n.Td(a.ctx, "ReviewYourAnswer", map[string]any{"Answer": q.Answers[o.SelectedAnswer]}))
			fmt.Fprintln(a.out, "  "+i18n.Td(a.ctx, "ReviewCorrectAnswer", map[string]any{"Answer": q.CorrectAnswerText()}))
		}
	}
	return nil
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		Args:  cobra.NoArgs,
		RunE:  runSettings,
	}
	f := cmd.Flags()
	f.String("state", "", "Federal state for state questions (empty or Bundesweit for none)")
	f.Bool("timer", false, "Enable the time limit")
	f.Bool("feedback", false, "Show the correct answer right after answering")
	f.Bool("shuffle", true, "Shuffle questions")
	f.String("test-mode", "", "Session type started by quiz (full, practice)")
	return cmd
}

func runSettings(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	// Only flags given on the command line change settings; config and env do not.
	f := cmd.Flags()
	var patch model.SettingsPatch
	changed := false
	if f.Changed("state") {
		v, _ := f.GetString("state")
		patch.SelectedState = &v
		changed = true
	}
	if f.Changed("timer") {
		v, _ := f.GetBool("timer")
		patch.TimerEnabled = &v
		changed = true
	}
	if f.Changed("feedback") {
		v, _ := f.GetBool("feedback")
		patch.ImmediateFeedback = &v
		changed = true
	}
	if f.Changed("shuffle") {
		v, _ := f.GetBool("shuffle")
		patch.ShuffleQuestions = &v
		changed = true
	}
	if f.Changed("test-mode") {
		v, _ := f.GetString("test-mode")
		mode := model.SessionType(v)
		patch.TestMode = &mode
		changed = true
	}

	svc := quiz.NewService(a.db, nil)
	var settings model.Settings
	if changed {
		settings, err = svc.UpdateSettings(a.ctx, patch)
		if err != nil {
			return err
		}
		slog.Info("updated settings", "state", settings.SelectedState, "test_mode", settings.TestMode)
	} else {
		settings = svc.LoadSettings(a.ctx)
	}

	state := settings.SelectedState
	if state == "" {
		state = i18n.T(a.ctx, "SettingsNoState")
	}
	a.say("SettingsState", map[string]any{"State": state})
	a.say("SettingsTimer", map[string]any{"Value": a.onOff(settings.TimerEnabled)})
	a.say("SettingsFeedback", map[string]any{"Value": a.onOff(settings.ImmediateFeedback)})
	a.say("SettingsShuffle", map[string]any{"Value": a.onOff(settings.ShuffleQuestions)})
	testMode := "SessionTypeFull"
	if settings.TestMode == model.SessionPractice {
		testMode = "SessionTypePractice"
	}
	a.say("SettingsTestMode", map[string]any{"Value": i18n.T(a.ctx, testMode)})
	if !settings.HasSelectedState {
		a.say("ChooseStateHint", nil)
	}
	return nil
}

func (a *app) onOff(b bool) string {
	if b {
		return i18n.T(a.ctx, "On")
	}
	return i18n.T(a.ctx, "Off")
}

func markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <question-id>",
		Short: "Mark a question for later practice, or remove the mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q", args[0])
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			q, err := a.db.GetQuestion(a.ctx, id)
			if err != nil {
				return fmt.Errorf("get question: %w", err)
			}
			if q == nil {
				return errors.New(i18n.Td(a.ctx, "QuestionNotFound", map[string]any{"ID": id}))
			}
			marked, err := a.db.ToggleMark(a.ctx, id)
			if err != nil {
				return fmt.Errorf("toggle mark: %w", err)
			}
			if marked {
				a.say("MarkedNow", map[string]any{"ID": id})
			} else {
				a.say("UnmarkedNow", map[string]any{"ID": id})
			}
			return nil
		},
	}
}

func mistakesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mistakes",
		Short: "List questions answered incorrectly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.v.GetBool("clear") {
				if err := a.db.ClearAllIncorrect(a.ctx); err != nil {
					return fmt.Errorf("clear mistakes: %w", err)
				}
				a.say("MistakesCleared", nil)
				return nil
			}

			settings, err := a.db.Settings(a.ctx)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			qs, err := a.db.IncorrectQuestions(a.ctx, settings.SelectedState)
			if err != nil {
				return fmt.Errorf("list mistakes: %w", err)
			}
			fmt.Fprintln(a.out, i18n.Tp(a.ctx, "StatsMistakes", len(qs)))
			for _, q := range qs {
				fmt.Fprintf(a.out, "- [%d] %s\n", q.ID, q.Text)
			}
			return nil
		},
	}
	cmd.Flags().Bool("clear", false, "Empty the mistakes list")
	return cmd
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List practice categories with their question counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			counts, err := a.db.CategoryCounts(a.ctx)
			if err != nil {
				return fmt.Errorf("count categories: %w", err)
			}
			all, err := a.db.QuestionsByCategory(a.ctx, model.CategoryFederal)
			if err != nil {
				return fmt.Errorf("load federal questions: %w", err)
			}

			a.say("CategoriesHeader", nil)
			fmt.Fprintf(a.out, "  %-24s %4d\n", quiz.CategoryFederalKey, counts[model.CategoryFederal])
			for _, st := range model.States {
				fmt.Fprintf(a.out, "  %-24s %4d\n", st, counts[st])
			}
			a.say("TopicsHeader", nil)
			for _, t := range quiz.Topics {
				n := len(quiz.FilterCategory(all, t.Key))
				fmt.Fprintf(a.out, "  %-24s %4d  %s\n", t.Key, n, t.Name)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export test results as JSON",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	settings, err := a.db.Settings(a.ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	export, err := a.db.ExportSessions(a.ctx, settings.SelectedState)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := a.v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = a.out
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported sessions", "count", len(export.Sessions), "output", outPath)
	return nil
}

func explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Generate missing answer explanations with an LLM",
		Args:  cobra.NoArgs,
		RunE:  runExplain,
	}
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Int("limit", 0, "Maximum number of questions to explain (0 = all)")
	return cmd
}

func runExplain(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	lang := a.v.GetString("lang")
	if !slices.Contains(prompts.Languages, lang) {
		return fmt.Errorf("no explanation prompt for language %q", lang)
	}

	client, err := llm.New(a.v.GetString("llm-url"), a.v.GetString("llm-key"), a.v.GetString("llm-model"))
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if err := client.Ping(a.ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", a.v.GetString("llm-url"), "model", a.v.GetString("llm-model"))

	n, err := client.Backfill(a.ctx, a.db, lang, a.v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("generate explanations: %w", err)
	}
	fmt.Fprintln(a.out, i18n.Tp(a.ctx, "ExplainSummary", n))
	return nil
}
