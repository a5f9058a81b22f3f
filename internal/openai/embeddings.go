// Package openai provides thin wrappers around the official OpenAI Go SDK
// for embeddings and chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
)

const (
	defaultDimension      = 1536
	defaultEmbeddingModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)
)

// EmbeddingClient calls the OpenAI embeddings API via the official SDK.
type EmbeddingClient struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
}

// EmbeddingOption configures the EmbeddingClient.
type EmbeddingOption func(*EmbeddingClient)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) EmbeddingOption {
	return func(c *EmbeddingClient) {
		c.dimensions = dim
	}
}

// WithEmbeddingModel sets the embedding model name. Empty uses text-embedding-3-small.
func WithEmbeddingModel(model string) EmbeddingOption {
	return func(c *EmbeddingClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewEmbeddingClient creates an OpenAI embeddings client using the official SDK.
func NewEmbeddingClient(apiKey string, opts ...EmbeddingOption) *EmbeddingClient {
	client := &EmbeddingClient{
		sdk:        openaisdk.NewClient(option.WithAPIKey(apiKey)),
		model:      defaultEmbeddingModel,
		dimensions: defaultDimension,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// CreateEmbedding returns the embedding vector for the given text.
// The returned slice length equals the configured dimensions.
func (c *EmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      openaisdk.EmbeddingModel(c.model),
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}
