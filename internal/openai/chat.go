package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyPrompt is returned when Complete is called with an empty user prompt.
	ErrEmptyPrompt = errors.New("openai: user prompt is empty")
	// ErrNoChoicesInResponse is returned when the API response contains no completion choices.
	ErrNoChoicesInResponse = errors.New("openai: no choices in response")
)

const defaultChatModel = string(openaisdk.ChatModelGPT4oMini)

// ChatClient calls the OpenAI chat completions API via the official SDK.
// Synchronous, single-shot; no streaming.
type ChatClient struct {
	sdk     openaisdk.Client
	model   string
	limiter *rate.Limiter
}

// ChatOption configures the ChatClient.
type ChatOption func(*ChatClient)

// WithChatModel sets the completion model name. Empty uses gpt-4o-mini.
func WithChatModel(model string) ChatOption {
	return func(c *ChatClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRequestsPerMinute caps completion calls client-side. Each call waits on
// the limiter before hitting the API, so a burst of requests smears out
// instead of tripping the provider's rate limits. Zero or negative disables.
func WithRequestsPerMinute(rpm int) ChatOption {
	return func(c *ChatClient) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
		}
	}
}

// NewChatClient creates an OpenAI chat completions client using the official SDK.
func NewChatClient(apiKey string, opts ...ChatOption) *ChatClient {
	client := &ChatClient{
		sdk:   openaisdk.NewClient(option.WithAPIKey(apiKey)),
		model: defaultChatModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Complete sends a system prompt plus user prompt and returns the narrative text.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", ErrEmptyPrompt
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("openai completion rate limit: %w", err)
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPrompt),
		},
		Model: openaisdk.ChatModel(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesInResponse
	}

	return resp.Choices[0].Message.Content, nil
}
