package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var questionTagRegex = regexp.MustCompile(`(?i)</?\s*question\b[^>]*>`)

// maxFieldRunes bounds each text field inserted into a prompt.
const maxFieldRunes = 2000

// Languages lists the languages with an explanation prompt.
var Languages = []string{"de", "en"}

// ExplainData holds template data for explanation prompts.
type ExplainData struct {
	QuestionText  string
	Answers       []string
	CorrectAnswer string
	Category      string
}

// Set holds the parsed explanation templates by language.
type Set struct {
	explain map[string]*template.Template
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the templates embedded in the binary, parsed once.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Load(templateFS)
	})
	return defaultSet, defaultErr
}

// Load parses templates/explain_<lang>.txt from fsys for every supported language.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{explain: make(map[string]*template.Template)}
	for _, lang := range Languages {
		name := "templates/explain_" + lang + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New("explain_" + lang).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		s.explain[lang] = tmpl
	}
	return s, nil
}

// BuildExplainPrompt renders the explanation prompt for q in lang.
func (s *Set) BuildExplainPrompt(lang string, q model.Question) (string, error) {
	if s == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := s.explain[lang]
	if !ok {
		return "", errors.New("unsupported prompt language: " + lang)
	}
	if !q.ValidAnswer(q.CorrectAnswer) {
		return "", fmt.Errorf("question %d has no valid correct answer", q.ID)
	}

	data := ExplainData{
		QuestionText:  sanitize(q.Text),
		CorrectAnswer: sanitize(q.CorrectAnswerText()),
		Category:      q.Category,
	}
	for _, a := range q.Answers {
		data.Answers = append(data.Answers, sanitize(a))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips the markers delimiting question content and bounds the length.
func sanitize(text string) string {
	text = questionTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxFieldRunes {
		text = string([]rune(text)[:maxFieldRunes]) + " [...]"
	}
	return text
}
