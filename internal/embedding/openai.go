package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingAPI is the slice of the OpenAI client the provider needs.
// Narrowed to an interface so tests can stub the API.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider generates embeddings through the OpenAI API.
type OpenAIProvider struct {
	api        EmbeddingAPI
	model      openai.EmbeddingModel
	dimensions int
}

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// NewOpenAIProvider creates a provider backed by the real OpenAI client.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = openai.AdaEmbeddingV2
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &OpenAIProvider{
		api:        openai.NewClient(cfg.APIKey),
		model:      model,
		dimensions: dimensions,
	}
}

// Embed generates an embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != p.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, p.dimensions, len(vec))
	}
	return vec, nil
}

// ModelVersion reports the model name used for cache key versioning.
func (p *OpenAIProvider) ModelVersion() string {
	return string(p.model)
}
