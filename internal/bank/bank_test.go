package bank

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
	"github.com/jira369/Leben-in-Deutschland/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const sampleBank = `[
  {"id": 1, "text": "In Deutschland dürfen Menschen offen etwas gegen die Regierung sagen, weil ...",
   "answers": ["hier Religionsfreiheit gilt.", "die Menschen Steuern zahlen.", "die Menschen das Wahlrecht haben.", "hier Meinungsfreiheit gilt."],
   "correctAnswer": 4, "category": "Alle"},
  {"id": 2, "text": "Welches Wappen gehört zum Freistaat Bayern?",
   "answers": ["1", "2", "3", "4"], "correctAnswer": 1, "category": "Bayern", "imagePath": null,
   "difficulty": "mittel"},
  {"id": 3, "text": "Nur drei Antworten", "answers": ["a", "b", "c"], "correctAnswer": 1, "category": "Alle"},
  {"id": 4, "text": "Index zu groß", "answers": ["a", "b", "c", "d"], "correctAnswer": 0, "category": "Alle"},
  {"id": 5, "text": "Unbekanntes Land", "answers": ["a", "b", "c", "d"], "correctAnswer": 2, "category": "Atlantis"},
  {"text": "", "answers": ["a", "b", "c", "d"], "correctAnswer": 2, "category": "Alle"},
  {"id": 1, "text": "Doppelte ID", "answers": ["a", "b", "c", "d"], "correctAnswer": 2, "category": "Alle"}
]`

func TestNewImporterAnswerBase(t *testing.T) {
	s := newTestStore(t)
	for _, base := range []int{0, 1} {
		if _, err := NewImporter(s, base); err != nil {
			t.Errorf("NewImporter(%d): %v", base, err)
		}
	}
	if _, err := NewImporter(s, 2); !errors.Is(err, ErrInvalidAnswerBase) {
		t.Errorf("expected ErrInvalidAnswerBase, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	im, err := NewImporter(newTestStore(t), 1)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}

	questions, skipped, err := im.Decode([]byte(sampleBank))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 valid questions, got %d", len(questions))
	}
	if skipped != 5 {
		t.Errorf("expected 5 skipped entries, got %d", skipped)
	}

	first := questions[0]
	if first.Category != model.CategoryFederal {
		t.Errorf("expected legacy category to map to %q, got %q", model.CategoryFederal, first.Category)
	}
	// 1-based 4 becomes 0-based 3.
	if first.CorrectAnswer != 3 || first.CorrectAnswerText() != "hier Meinungsfreiheit gilt." {
		t.Errorf("unexpected correct answer %d", first.CorrectAnswer)
	}
	if questions[1].Category != "Bayern" || questions[1].CorrectAnswer != 0 {
		t.Errorf("unexpected second question %+v", questions[1])
	}
}

func TestDecodeZeroBased(t *testing.T) {
	im, _ := NewImporter(newTestStore(t), 0)
	data := `[{"text": "Q", "answers": ["a", "b", "c", "d"], "correctAnswer": 0, "category": "Bundesweit"},
	          {"text": "Q", "answers": ["a", "b", "c", "d"], "correctAnswer": 4, "category": "Bundesweit"}]`
	questions, skipped, err := im.Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(questions) != 1 || questions[0].CorrectAnswer != 0 || skipped != 1 {
		t.Errorf("expected one question at index 0 and one skipped, got %v, skipped %d", questions, skipped)
	}
}

func TestDecodeMalformed(t *testing.T) {
	im, _ := NewImporter(newTestStore(t), 1)
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"object", `{"text": "Q"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := im.Decode([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestImport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	im, _ := NewImporter(s, 1)

	res, err := im.Import(ctx, "fragen.json", []byte(sampleBank))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Inserted != 2 || res.Skipped != 5 || res.Unchanged {
		t.Errorf("unexpected result %+v", res)
	}
	q, _ := s.GetQuestion(ctx, 2)
	if q == nil || q.Category != "Bayern" {
		t.Fatalf("expected question 2 to be stored, got %+v", q)
	}

	// Same content is skipped.
	res, err = im.Import(ctx, "fragen.json", []byte(sampleBank))
	if err != nil {
		t.Fatalf("Import again: %v", err)
	}
	if !res.Unchanged {
		t.Errorf("expected unchanged file to be skipped, got %+v", res)
	}
	if n, _ := s.QuestionCount(ctx); n != 2 {
		t.Errorf("expected 2 questions, got %d", n)
	}
}

func TestImportChangedFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	im, _ := NewImporter(s, 1)

	original := `[{"id": 7, "text": "Alt", "answers": ["a", "b", "c", "d"], "correctAnswer": 1, "category": "Alle"}]`
	if _, err := im.Import(ctx, "fragen.json", []byte(original)); err != nil {
		t.Fatalf("Import: %v", err)
	}

	corrected := `[{"id": 7, "text": "Neu", "answers": ["a", "b", "c", "d"], "correctAnswer": 2, "category": "Alle"},
	               {"text": "Ohne ID", "answers": ["a", "b", "c", "d"], "correctAnswer": 1, "category": "Alle"}]`
	res, err := im.Import(ctx, "fragen.json", []byte(corrected))
	if err != nil {
		t.Fatalf("Import changed: %v", err)
	}
	if res.Updated != 1 || res.Skipped != 1 || res.Inserted != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	q, _ := s.GetQuestion(ctx, 7)
	if q == nil || q.Text != "Neu" || q.CorrectAnswer != 1 {
		t.Errorf("expected corrected question, got %+v", q)
	}
	if n, _ := s.QuestionCount(ctx); n != 1 {
		t.Errorf("expected 1 question, got %d", n)
	}
}

func TestImportFile(t *testing.T) {
	s := newTestStore(t)
	im, _ := NewImporter(s, 0)

	path := filepath.Join(t.TempDir(), "bank.json")
	data := `[{"text": "Q", "answers": ["a", "b", "c", "d"], "correctAnswer": 3, "category": "Hessen"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := im.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %+v", res)
	}

	if _, err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestImportMixedIDs(t *testing.T) {
	s := newTestStore(t)
	im, _ := NewImporter(s, 0)
	ctx := context.Background()

	mixed := `[{"text": "Frage A", "answers": ["a", "b", "c", "d"], "correctAnswer": 0, "category": "Alle"},
	           {"id": 1, "text": "Frage B", "answers": ["a", "b", "c", "d"], "correctAnswer": 1, "category": "Alle"},
	           {"text": "Frage C", "answers": ["a", "b", "c", "d"], "correctAnswer": 2, "category": "Berlin"}]`
	res, err := im.Import(ctx, "gemischt.json", []byte(mixed))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Inserted != 3 || res.Updated != 0 || res.Skipped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	n, err := s.QuestionCount(ctx)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if n != res.Inserted {
		t.Errorf("reported %d inserted but bank holds %d questions", res.Inserted, n)
	}

	q, _ := s.GetQuestion(ctx, 1)
	if q == nil || q.Text != "Frage B" {
		t.Errorf("explicit id 1 should hold Frage B, got %+v", q)
	}
	all, err := s.AllQuestions(ctx)
	if err != nil {
		t.Fatalf("AllQuestions: %v", err)
	}
	texts := make(map[string]int64)
	for _, q := range all {
		texts[q.Text] = q.ID
	}
	for _, want := range []string{"Frage A", "Frage B", "Frage C"} {
		if _, ok := texts[want]; !ok {
			t.Errorf("%s missing after import", want)
		}
	}
	if texts["Frage A"] == 1 || texts["Frage C"] == 1 {
		t.Errorf("auto-assigned id collided with explicit id: %v", texts)
	}
}
