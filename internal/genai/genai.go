// Package genai provides the AI fallback generator backed by the OpenAI API.
//
// When a turn with the ai_autofill strategy expires unanswered, the scheduler
// asks this package for filler content that continues the story in place of
// the absent writer.
package genai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when neither the request nor the client configures one.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You are a ghostwriter for a collaborative storytelling game.
A player failed to take their turn in time, and you are filling in for them.
Write a short continuation (2-4 sentences) that answers the prompt and keeps
the story moving. Write only the continuation, with no preamble or commentary.`

// FillRequest describes a single autofill generation.
type FillRequest struct {
	BranchID string `json:"branch_id"`
	TurnID   string `json:"turn_id"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model,omitempty"`
}

// FillResult carries the generated content and the model that produced it.
type FillResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Generator is the AI fallback contract consumed by the scheduler. Failures
// are reported as errors; a result with empty content is never returned.
type Generator interface {
	GenerateFill(ctx context.Context, req FillRequest) (FillResult, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the default model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service for autofill generation.
type Client struct {
	chat  chatService
	model string
}

// Compile-time check that Client implements Generator.
var _ Generator = (*Client)(nil)

// NewClient initializes a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// GenerateFill generates filler content for an expired turn.
func (c *Client) GenerateFill(ctx context.Context, req FillRequest) (FillResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		return FillResult{}, fmt.Errorf("autofill generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return FillResult{}, fmt.Errorf("autofill generation returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return FillResult{}, fmt.Errorf("autofill generation returned empty content")
	}
	return FillResult{Content: content, Model: model}, nil
}
