// Package llm talks to an OpenAI-compatible chat completion endpoint
// (OpenRouter by default) and turns free-form requirements into structured
// workflow requirements.
package llm

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "google/gemini-2.0-flash-exp:free"
)

// ErrNoAPIKey is returned by NewClient when no key is configured.
var ErrNoAPIKey = apperrors.New("llm: api key is not set", apperrors.CategoryBadInput).
	WithTextCode("LLM_NO_API_KEY")

// Completer sends a single user prompt and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client wraps the go-openai client with a fixed model and timeout.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a client. BaseURL and Model fall back to the defaults.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNoAPIKey.Clone()
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = DefaultBaseURL
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// Model returns the model name requests are sent with.
func (c *Client) Model() string { return c.model }

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CategoryExternal, "llm: chat completion failed").
			WithTextCode("LLM_REQUEST_FAILED").
			WithMetadata(map[string]any{"model": c.model})
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New("llm: no choices returned", apperrors.CategoryExternal).
			WithTextCode("LLM_EMPTY_RESPONSE").
			WithMetadata(map[string]any{"model": c.model})
	}
	return resp.Choices[0].Message.Content, nil
}

// StripFences returns the body of the first fenced code block in s, or s
// trimmed when there is none. Models often wrap JSON in ```json fences.
func StripFences(s string) string {
	for _, open := range []string{"```json", "```"} {
		if i := strings.Index(s, open); i >= 0 {
			rest := s[i+len(open):]
			if j := strings.Index(rest, "```"); j >= 0 {
				rest = rest[:j]
			}
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(s)
}
