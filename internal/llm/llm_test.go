package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// fakeEndpoint serves the two OpenAI routes the client uses. reply returns the assistant
// content for a prompt.
func fakeEndpoint(t *testing.T, reply func(prompt string) string) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ModelsList{Models: []openai.Model{{ID: "test-model"}}})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("expected JSON response format")
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: reply(req.Messages[0].Content),
				},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/v1", "test-key", "test-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func testQuestion(id int64) model.Question {
	return model.Question{
		ID:            id,
		Text:          "Was ist in Deutschland ein Grundrecht?",
		Answers:       []string{"Glaubensfreiheit", "Wahlpflicht", "Steuerfreiheit", "Wehrpflicht"},
		CorrectAnswer: 0,
		Category:      model.CategoryFederal,
	}
}

func TestPing(t *testing.T) {
	c := fakeEndpoint(t, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	c.model = "other-model"
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestExplain(t *testing.T) {
	var prompt string
	c := fakeEndpoint(t, func(p string) string {
		prompt = p
		return `{"explanation": "  Artikel 4 des Grundgesetzes schützt die Glaubensfreiheit. "}`
	})

	got, err := c.Explain(context.Background(), testQuestion(1), "de")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "Artikel 4 des Grundgesetzes schützt die Glaubensfreiheit." {
		t.Errorf("unexpected explanation %q", got)
	}
	if !strings.Contains(prompt, "Richtige Antwort: Glaubensfreiheit") {
		t.Errorf("prompt did not carry the correct answer: %q", prompt)
	}
}

func TestParseReply(t *testing.T) {
	c := fakeEndpoint(t, nil)
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"valid", `{"explanation": "Weil."}`, "Weil.", false},
		{"extra fields", `{"explanation": "Weil.", "confidence": 0.9}`, "Weil.", false},
		{"not json", `Weil.`, "", true},
		{"missing field", `{"text": "Weil."}`, "", true},
		{"wrong type", `{"explanation": 42}`, "", true},
		{"empty", `{"explanation": ""}`, "", true},
		{"blank", `{"explanation": "   "}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.parseReply(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReply) {
					t.Errorf("expected ErrInvalidReply, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReply: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseReply = %q, want %q", got, tt.want)
			}
		})
	}
}

type memExplanations struct {
	mu       sync.Mutex
	pending  []model.Question
	stored   map[int64]string
	gotLimit int
}

func (m *memExplanations) QuestionsMissingExplanation(_ context.Context, limit int) ([]model.Question, error) {
	m.gotLimit = limit
	return m.pending, nil
}

func (m *memExplanations) UpdateExplanation(_ context.Context, id int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[id] = text
	return nil
}

func TestBackfill(t *testing.T) {
	c := fakeEndpoint(t, func(p string) string {
		if strings.Contains(p, "Kaputt") {
			return `kein JSON`
		}
		return `{"explanation": "Erklärt."}`
	})

	broken := testQuestion(2)
	broken.Text = "Kaputt"
	st := &memExplanations{
		pending: []model.Question{testQuestion(1), broken, testQuestion(3)},
		stored:  make(map[int64]string),
	}

	n, err := c.Backfill(context.Background(), st, "en", 5)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 stored explanations, got %d", n)
	}
	if st.gotLimit != 5 {
		t.Errorf("expected limit 5 to be passed through, got %d", st.gotLimit)
	}
	if _, ok := st.stored[2]; ok {
		t.Error("invalid reply should not be stored")
	}
	if st.stored[3] != "Erklärt." {
		t.Errorf("unexpected stored text %q", st.stored[3])
	}
}

func TestBackfillCancelled(t *testing.T) {
	c := fakeEndpoint(t, func(string) string { return `{"explanation": "x"}` })
	st := &memExplanations{pending: []model.Question{testQuestion(1)}, stored: make(map[int64]string)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := c.Backfill(ctx, st, "de", 0)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("expected cancellation, got %d, %v", n, err)
	}
}
