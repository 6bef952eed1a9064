package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jira369/Leben-in-Deutschland/internal/llm/prompts"
	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// explanationSchema is the shape the model must reply with.
const explanationSchema = `{
	"type": "object",
	"required": ["explanation"],
	"properties": {
		"explanation": {"type": "string", "minLength": 1}
	}
}`

// ErrInvalidReply is returned when the model's reply does not match the expected JSON.
var ErrInvalidReply = errors.New("invalid LLM reply")

type explanationReply struct {
	Explanation string `json:"explanation"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	prompts *prompts.Set
	schema  *jsonschema.Schema
}

// New creates a new LLM client. An empty baseURL uses the OpenAI endpoint.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	set, err := prompts.Default()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		prompts: set,
		schema:  schema,
	}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(explanationSchema))
	if err != nil {
		return nil, fmt.Errorf("parse explanation schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	const url = "schema://explanation.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add explanation schema: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile explanation schema: %w", err)
	}
	return schema, nil
}

// Ping checks that the endpoint answers and knows the configured model.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not offered by endpoint", c.model)
}

// Explain asks the model why the correct answer of q is right, in lang.
func (c *Client) Explain(ctx context.Context, q model.Question, lang string) (string, error) {
	prompt, err := c.prompts.BuildExplainPrompt(lang, q)
	if err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", q.ID, "raw", raw)
	return c.parseReply(raw)
}

func (c *Client) parseReply(raw string) (string, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: not JSON: %v (raw: %s)", ErrInvalidReply, err, raw)
	}
	if err := c.schema.Validate(doc); err != nil {
		return "", fmt.Errorf("%w: %v (raw: %s)", ErrInvalidReply, err, raw)
	}
	var reply explanationReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	text := strings.TrimSpace(reply.Explanation)
	if text == "" {
		return "", fmt.Errorf("%w: empty explanation", ErrInvalidReply)
	}
	return text, nil
}

// ExplanationStore reads and writes question explanations.
type ExplanationStore interface {
	QuestionsMissingExplanation(ctx context.Context, limit int) ([]model.Question, error)
	UpdateExplanation(ctx context.Context, id int64, explanation string) error
}

// Backfill generates explanations for up to limit questions that have none and returns the
// number stored. A failing question is logged and skipped; cancellation stops the run.
func (c *Client) Backfill(ctx context.Context, st ExplanationStore, lang string, limit int) (int, error) {
	questions, err := st.QuestionsMissingExplanation(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}

	done := 0
	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		text, err := c.Explain(ctx, q, lang)
		if err != nil {
			slog.Error("failed to generate explanation", "question_id", q.ID, "error", err)
			continue
		}
		if err := st.UpdateExplanation(ctx, q.ID, text); err != nil {
			return done, fmt.Errorf("store explanation for %d: %w", q.ID, err)
		}
		slog.Info("stored explanation", "question_id", q.ID)
		done++
	}
	return done, nil
}
