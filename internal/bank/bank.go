// Package bank loads question bank JSON files into the store.
package bank

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

//go:embed question.schema.json
var questionSchema []byte

// ErrInvalidAnswerBase is returned for an answer base other than 0 or 1.
var ErrInvalidAnswerBase = errors.New("answer base must be 0 or 1")

// legacyFederal is the federal category label used by older bank files.
const legacyFederal = "Alle"

// Store is the persistence needed by the importer.
type Store interface {
	InsertQuestion(ctx context.Context, q model.Question) (int64, error)
	UpsertQuestion(ctx context.Context, q model.Question) error
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
}

// Result reports what an import did with one file.
type Result struct {
	Path      string
	Unchanged bool
	Inserted  int
	Updated   int
	Skipped   int
}

// Importer validates bank entries and writes them to a Store.
type Importer struct {
	store      Store
	schema     *jsonschema.Schema
	answerBase int
}

// NewImporter returns an Importer for files whose correctAnswer values start at answerBase.
func NewImporter(store Store, answerBase int) (*Importer, error) {
	if answerBase != 0 && answerBase != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAnswerBase, answerBase)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Importer{store: store, schema: schema, answerBase: answerBase}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(questionSchema))
	if err != nil {
		return nil, fmt.Errorf("parse question schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	const url = "schema://question.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add question schema: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile question schema: %w", err)
	}
	return schema, nil
}

// ImportFile reads and imports the bank file at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("read %s: %w", path, err)
	}
	return im.Import(ctx, path, data)
}

// Import imports data under the name path. A file already imported with the same content is
// skipped. A changed file upserts its entries that carry an id; entries without one are skipped.
func (im *Importer) Import(ctx context.Context, path string, data []byte) (Result, error) {
	res := Result{Path: path}

	hash := sha256sum(data)
	storedHash, err := im.store.GetImportedFileHash(ctx, path)
	if err != nil {
		return res, fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("questions file unchanged, skipping", "path", path)
		res.Unchanged = true
		return res, nil
	}
	changed := storedHash != ""
	if changed {
		slog.Warn("questions file changed since last import, updating entries by id", "path", path)
	}

	questions, skipped, err := im.Decode(data)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", path, err)
	}
	res.Skipped = skipped

	// Entries with an id are written before the others so that an auto-assigned id can never
	// take a number the file claims explicitly.
	var unnumbered []model.Question
	for _, q := range questions {
		if q.ID <= 0 {
			unnumbered = append(unnumbered, q)
			continue
		}
		if err := im.store.UpsertQuestion(ctx, q); err != nil {
			return res, fmt.Errorf("upsert question %d from %s: %w", q.ID, path, err)
		}
		if changed {
			res.Updated++
		} else {
			res.Inserted++
		}
	}
	for _, q := range unnumbered {
		if changed {
			slog.Warn("entry without id in changed file, skipping", "path", path, "text", q.Text)
			res.Skipped++
			continue
		}
		if _, err := im.store.InsertQuestion(ctx, q); err != nil {
			return res, fmt.Errorf("insert question from %s: %w", path, err)
		}
		res.Inserted++
	}

	if err := im.store.SetImportedFileHash(ctx, path, hash); err != nil {
		return res, fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported questions",
		"path", path,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return res, nil
}

// Decode parses a bank file into questions with 0-based correct answers. Entries that fail
// validation are logged and counted in skipped; only a malformed top-level document is an error.
func (im *Importer) Decode(data []byte) (questions []model.Question, skipped int, err error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("expected a JSON array of questions: %w", err)
	}

	seen := make(map[int64]bool)
	for i, raw := range entries {
		q, err := im.decodeEntry(raw)
		if err == nil && q.ID > 0 && seen[q.ID] {
			err = fmt.Errorf("duplicate id %d", q.ID)
		}
		if err != nil {
			slog.Warn("skipping invalid question", "index", i, "error", err)
			skipped++
			continue
		}
		if q.ID > 0 {
			seen[q.ID] = true
		}
		questions = append(questions, q)
	}
	return questions, skipped, nil
}

func (im *Importer) decodeEntry(raw json.RawMessage) (model.Question, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return model.Question{}, err
	}
	if err := im.schema.Validate(doc); err != nil {
		return model.Question{}, err
	}

	var qi model.QuestionImport
	if err := json.Unmarshal(raw, &qi); err != nil {
		return model.Question{}, err
	}

	category := qi.Category
	if category == legacyFederal {
		category = model.CategoryFederal
	}
	if category != model.CategoryFederal && !model.IsState(category) {
		return model.Question{}, fmt.Errorf("unknown category %q", qi.Category)
	}

	q := model.Question{
		ID:            qi.ID,
		Text:          qi.Text,
		Answers:       qi.Answers,
		CorrectAnswer: qi.CorrectAnswer - im.answerBase,
		Explanation:   qi.Explanation,
		Category:      category,
		ImagePath:     qi.ImagePath,
	}
	if !q.ValidAnswer(q.CorrectAnswer) {
		return model.Question{}, fmt.Errorf("correct answer %d out of range for base %d", qi.CorrectAnswer, im.answerBase)
	}
	return q, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
